package deploy

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/retry"
	"github.com/OnisOris/pionctl/internal/security"
	"github.com/OnisOris/pionctl/internal/ssh"
	"github.com/OnisOris/pionctl/internal/systemd"
)

// Plan is a service configuration resolved for one remote user: every path
// is absolute and every command can be rendered.
type Plan struct {
	Service        string
	User           string
	WorkDir        string
	EnvDir         string
	Repository     string
	Interpreter    string
	Requirements   string
	Packages       []string
	Bootstrap      string
	Unit           systemd.Descriptor
	Timeouts       config.TimeoutsSection
	LockPolicy     retry.Policy
	JournalLines   int
	// VerifyAttempts and VerifyInterval drive the post-start health check
	VerifyAttempts int
	VerifyInterval time.Duration
}

// NewPlan resolves cfg against the remote user's home directory.
func NewPlan(cfg *config.ServiceConfig, user string) (*Plan, error) {
	if err := security.ValidateUnixUser(user); err != nil {
		return nil, fmt.Errorf("invalid remote user: %w", err)
	}
	if errs := config.ValidateServiceConfig(cfg); errs.HasErrors() {
		return nil, fmt.Errorf("invalid service configuration: %w", errs)
	}

	workDir := constants.RemotePath(user, cfg.Source.Directory)
	envDir := ""
	if cfg.Runtime.EnvDir != "" {
		envDir = resolveIn(workDir, cfg.Runtime.EnvDir)
	}
	requirements := ""
	if cfg.Runtime.Requirements != "" {
		requirements = resolveIn(workDir, cfg.Runtime.Requirements)
	}

	p := &Plan{
		Service:      cfg.Service.Name,
		User:         user,
		WorkDir:      workDir,
		EnvDir:       envDir,
		Repository:   cfg.Source.Repository,
		Interpreter:  cfg.Runtime.Interpreter,
		Requirements: requirements,
		Packages:     cfg.Dependencies.Packages,
		Bootstrap:    cfg.Dependencies.Bootstrap,
		Timeouts:     cfg.Timeouts,
		LockPolicy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
			Transient:   retry.LockContention,
		},
		JournalLines:   cfg.Diagnostics.JournalLines,
		VerifyAttempts: cfg.Diagnostics.VerifyAttempts,
		VerifyInterval: cfg.Diagnostics.VerifyInterval,
	}

	p.Unit = systemd.Descriptor{
		Name:             cfg.Service.Name,
		Description:      cfg.Service.Description,
		User:             user,
		WorkingDirectory: workDir,
		Command:          cfg.Runtime.Command,
		PullOnStart:      cfg.Runtime.PullOnStart,
		Restart:          cfg.Service.Restart,
		RestartSec:       cfg.Service.RestartSec,
		LogMode:          systemd.LogMode(cfg.Service.LogMode),
		LogFile:          cfg.Service.LogFile,
	}
	if len(cfg.Retry.TransientPatterns) > 0 {
		p.LockPolicy.Transient = retry.MatchStderr(cfg.Retry.TransientPatterns...)
	}
	if envDir != "" {
		p.Unit.Environment = path.Join(envDir, "bin", "activate")
	}

	if err := p.LockPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if err := p.Unit.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service unit: %w", err)
	}

	return p, nil
}

// resolveIn resolves p relative to dir unless it is absolute
func resolveIn(dir, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(dir, p)
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// supervisor applies the configured supervisor timeout to a systemctl command
func (p *Plan) supervisor(cmd ssh.Command) ssh.Command {
	cmd.Timeout = timeoutOr(p.Timeouts.Supervisor, cmd.Timeout)
	return cmd
}

// PullCommand refreshes an existing checkout
func (p *Plan) PullCommand() ssh.Command {
	return ssh.Command{
		Line:    fmt.Sprintf("cd %s && git pull --ff-only", security.ShellEscape(p.WorkDir)),
		Timeout: timeoutOr(p.Timeouts.Clone, constants.CloneTimeout),
	}
}

// RestartCommand restarts the service
func (p *Plan) RestartCommand() ssh.Command {
	return p.supervisor(systemd.Restart(p.Service))
}

// PackagesCommand refreshes the package index and installs the system
// dependencies. It returns false when there is nothing to install.
func (p *Plan) PackagesCommand() (ssh.Command, bool) {
	if len(p.Packages) == 0 {
		return ssh.Command{}, false
	}
	escaped := make([]string, len(p.Packages))
	for i, pkg := range p.Packages {
		escaped[i] = security.ShellEscape(pkg)
	}
	return ssh.Command{
		Line: "export DEBIAN_FRONTEND=noninteractive && apt-get update && apt-get install -y " +
			strings.Join(escaped, " "),
		Elevated: true,
		Timeout:  timeoutOr(p.Timeouts.Packages, constants.PackagesTimeout),
	}, true
}

// BootstrapCommand downloads and runs the payload's own installer script as
// root. The script is fetched to a temporary file first so a failed
// download fails the step instead of piping an empty script to bash.
// It returns false when no bootstrap script is configured.
func (p *Plan) BootstrapCommand() (ssh.Command, bool) {
	if p.Bootstrap == "" {
		return ssh.Command{}, false
	}
	line := fmt.Sprintf(
		`script=$(mktemp) && curl -fsSL %s -o "$script" && bash "$script"; rc=$?; rm -f "$script"; exit $rc`,
		security.ShellEscape(p.Bootstrap))
	return ssh.Command{
		Line:     line,
		Elevated: true,
		Timeout:  timeoutOr(p.Timeouts.Bootstrap, constants.BootstrapTimeout),
	}, true
}

// CloneCommand clones the repository, or pulls when a checkout is already
// present. Exactly one of the two runs. A non-empty directory that is not a
// checkout is left untouched and fails the step with its path on stderr.
func (p *Plan) CloneCommand() ssh.Command {
	dir := security.ShellEscape(p.WorkDir)
	line := fmt.Sprintf(
		"mkdir -p %s && if [ -d %s ]; then cd %s && git pull --ff-only; "+
			`elif [ -n "$(ls -A %s 2>/dev/null)" ]; then echo %s >&2; false; `+
			"else git clone %s %s; fi",
		security.ShellEscape(path.Dir(p.WorkDir)),
		security.ShellEscape(path.Join(p.WorkDir, ".git")),
		dir,
		dir,
		security.ShellEscape(p.WorkDir+" exists and is not a git checkout, move or remove it"),
		security.ShellEscape(p.Repository),
		dir)
	return ssh.Command{
		Line:    line,
		Timeout: timeoutOr(p.Timeouts.Clone, constants.CloneTimeout),
	}
}

// EnvironmentCommand creates the isolated environment when it is absent and
// installs the requirements manifest when one exists. It returns false when
// no environment is configured.
func (p *Plan) EnvironmentCommand() (ssh.Command, bool) {
	if p.EnvDir == "" {
		return ssh.Command{}, false
	}
	env := security.ShellEscape(p.EnvDir)
	pip := security.ShellEscape(path.Join(p.EnvDir, "bin", "pip"))

	line := fmt.Sprintf("cd %s && if [ ! -d %s ]; then %s -m venv %s && %s install --upgrade pip; fi",
		security.ShellEscape(p.WorkDir), env, p.Interpreter, env, pip)
	if p.Requirements != "" {
		req := security.ShellEscape(p.Requirements)
		line += fmt.Sprintf(" && if [ -f %s ]; then %s install -r %s; fi", req, pip, req)
	}

	return ssh.Command{
		Line:    line,
		Timeout: timeoutOr(p.Timeouts.Environment, constants.EnvironmentTimeout),
	}, true
}

// UnitPath is where the unit file is installed
func (p *Plan) UnitPath() string {
	return constants.UnitPath(p.Service)
}

// UnitCommand writes the rendered unit file
func (p *Plan) UnitCommand(content string) ssh.Command {
	return p.supervisor(systemd.WriteUnit(p.Service, content))
}

// DiagnosticCommands read the service's recent output
func (p *Plan) DiagnosticCommands() []ssh.Command {
	lines := p.JournalLines
	if lines <= 0 {
		lines = constants.DefaultJournalLines
	}
	cmds := []ssh.Command{systemd.Journal(p.Service, lines)}
	if p.Unit.LogMode == systemd.LogFile && p.Unit.LogFile != "" {
		cmds = append(cmds, systemd.TailFile(p.Unit.LogFile, lines))
	}
	return cmds
}
