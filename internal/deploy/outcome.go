package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OnisOris/pionctl/internal/ssh"
)

// Kind classifies why a stage failed.
type Kind int

const (
	// KindConnection covers authentication, network and broken-session errors
	KindConnection Kind = iota
	// KindTimeout is a command that outlived its timeout
	KindTimeout
	// KindTransient is a retryable failure that exhausted its attempts
	KindTransient
	// KindPermanent is a non-zero exit that is not worth retrying
	KindPermanent
	// KindInterrupted is a run cancelled by the operator
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// classify maps a transport error onto a Kind.
func classify(err error) Kind {
	var timeoutErr *ssh.ExecTimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindInterrupted
	default:
		return KindConnection
	}
}

// Failure describes the stage that stopped a run. Diagnostics hold whatever
// could be collected from the host afterwards; collecting them never
// replaces the cause.
type Failure struct {
	Stage       Stage
	Kind        Kind
	Command     string
	ExitCode    int
	Stderr      string
	Err         error
	Diagnostics string
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", f.Stage)
	switch {
	case f.Err != nil:
		fmt.Fprintf(&b, " (%s): %v", f.Kind, f.Err)
	default:
		fmt.Fprintf(&b, " (%s, exit %d)", f.Kind, f.ExitCode)
		if stderr := strings.TrimSpace(f.Stderr); stderr != "" {
			fmt.Fprintf(&b, ": %s", lastLine(stderr))
		}
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Path is the branch an install run took after probing.
type Path string

const (
	PathNone      Path = ""
	PathUpdate    Path = "update"
	PathFresh     Path = "fresh-install"
	PathReinstall Path = "reinstall"
)

// Outcome is the result of an install run: success, or a Failure.
type Outcome struct {
	RunID    string
	Host     string
	Service  string
	Path     Path
	Phase    Phase
	Failure  *Failure
	Warnings []string
	Duration time.Duration
}

// Success reports whether the run reached PhaseDone.
func (o *Outcome) Success() bool {
	return o.Failure == nil && o.Phase == PhaseDone
}

// Err returns the failure as an error, or nil on success.
func (o *Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}
