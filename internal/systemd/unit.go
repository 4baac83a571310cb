// Package systemd renders unit files and builds the systemctl and journalctl
// commands used to manage a service on the remote host.
package systemd

import (
	"bytes"
	_ "embed"
	"fmt"
	"path"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/OnisOris/pionctl/internal/security"
)

//go:embed templates/service.tmpl
var serviceTemplate string

var unitTemplate = template.Must(template.New("service.tmpl").Parse(serviceTemplate))

// LogMode selects where the service's stdout and stderr go
type LogMode string

// Supported log modes
const (
	LogNull    LogMode = "null"
	LogJournal LogMode = "journal"
	LogFile    LogMode = "file"
)

// MaxRestartSec bounds the restart delay
const MaxRestartSec = 10 * time.Minute

var restartPolicies = map[string]bool{
	"no":          true,
	"always":      true,
	"on-success":  true,
	"on-failure":  true,
	"on-abnormal": true,
	"on-abort":    true,
	"on-watchdog": true,
}

// Descriptor describes how the supervisor runs a service
type Descriptor struct {
	Name             string
	Description      string
	User             string
	WorkingDirectory string
	// Environment is an activation script sourced before Command, e.g. a venv's bin/activate
	Environment string
	Command     string
	// PullOnStart refreshes the working tree with git pull before every start
	PullOnStart bool
	Restart     string
	// RestartSec is the delay before a restart; zero restarts at once
	RestartSec time.Duration
	LogMode     LogMode
	LogFile     string
}

// withDefaults fills the zero values
func (d Descriptor) withDefaults() Descriptor {
	if d.Description == "" {
		d.Description = d.Name
	}
	if d.Restart == "" {
		d.Restart = "always"
	}
	if d.LogMode == "" {
		d.LogMode = LogJournal
	}
	return d
}

// Validate checks that the descriptor renders to a well-formed unit
func (d Descriptor) Validate() error {
	d = d.withDefaults()

	if err := security.ValidateServiceName(d.Name); err != nil {
		return err
	}
	if err := security.ValidateUnixUser(d.User); err != nil {
		return err
	}
	if !path.IsAbs(d.WorkingDirectory) {
		return fmt.Errorf("working directory must be absolute: %q", d.WorkingDirectory)
	}
	if strings.TrimSpace(d.Command) == "" {
		return fmt.Errorf("start command cannot be empty")
	}
	if !restartPolicies[d.Restart] {
		return fmt.Errorf("unsupported restart policy %q", d.Restart)
	}
	if d.RestartSec < 0 || d.RestartSec > MaxRestartSec {
		return fmt.Errorf("restart delay must be between 0 and %s, got %s", MaxRestartSec, d.RestartSec)
	}

	switch d.LogMode {
	case LogNull, LogJournal:
	case LogFile:
		if !path.IsAbs(d.LogFile) {
			return fmt.Errorf("log file must be an absolute path in file log mode: %q", d.LogFile)
		}
	default:
		return fmt.Errorf("unsupported log mode %q (expected null, journal or file)", d.LogMode)
	}

	// A newline in any value would inject extra unit directives
	for field, v := range map[string]string{
		"description":       d.Description,
		"working directory": d.WorkingDirectory,
		"environment":       d.Environment,
		"command":           d.Command,
		"log file":          d.LogFile,
	} {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%s cannot contain line breaks", field)
		}
	}

	return nil
}

// unitView is the data handed to the unit template
type unitView struct {
	Description      string
	User             string
	WorkingDirectory string
	ExecStart        string
	Restart          string
	RestartSec       string
	Output           string
}

// BuildUnit renders the unit file for d. It is deterministic: the same
// descriptor always yields byte-identical output.
func BuildUnit(d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid service descriptor: %w", err)
	}
	d = d.withDefaults()

	view := unitView{
		Description:      d.Description,
		User:             d.User,
		WorkingDirectory: d.WorkingDirectory,
		ExecStart:        execStart(d),
		Restart:          d.Restart,
		RestartSec:       strconv.FormatFloat(d.RestartSec.Seconds(), 'f', -1, 64),
		Output:           output(d),
	}

	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render unit for %s: %w", d.Name, err)
	}
	return buf.String(), nil
}

// execStart builds the bash invocation that prepares the environment and
// then replaces itself with the payload. A failed pull on start is tolerated
// so an offline device still runs its last checkout.
func execStart(d Descriptor) string {
	var steps []string
	if d.PullOnStart {
		steps = append(steps, "{ git pull --ff-only || true; }")
	}
	if d.Environment != "" {
		steps = append(steps, "source "+security.ShellEscape(d.Environment))
	}
	steps = append(steps, "exec "+d.Command)

	return `/bin/bash -c "` + EscapeExecArg(strings.Join(steps, " && ")) + `"`
}

func output(d Descriptor) string {
	switch d.LogMode {
	case LogNull:
		return "null"
	case LogFile:
		return "append:" + d.LogFile
	default:
		return "journal"
	}
}

// EscapeExecArg escapes s for use inside a double-quoted ExecStart argument.
// Backslashes and quotes are escaped; % and $ are doubled so that systemd
// does not expand specifiers or environment variables.
func EscapeExecArg(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`%`, `%%`,
		`$`, `$$`,
	)
	return r.Replace(s)
}
