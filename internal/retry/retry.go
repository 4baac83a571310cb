// Package retry runs remote commands under a bounded retry policy keyed on
// the command's output.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OnisOris/pionctl/internal/security"
	"github.com/OnisOris/pionctl/internal/ssh"
)

// Predicate classifies a failed result as transient (worth retrying)
type Predicate func(result *ssh.ExecResult) bool

// Policy bounds how a command is retried
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Transient   Predicate
}

// Validate checks the policy invariants
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got %s", p.Delay)
	}
	return nil
}

// IsTransient reports whether a failed result should be retried
func (p Policy) IsTransient(result *ssh.ExecResult) bool {
	if p.Transient == nil || result == nil {
		return false
	}
	return p.Transient(result)
}

// Single is a policy that executes exactly once
func Single() Policy {
	return Policy{MaxAttempts: 1}
}

// MatchStderr returns a predicate matching any of patterns as a
// case-insensitive substring of stderr
func MatchStderr(patterns ...string) Predicate {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lowered = append(lowered, strings.ToLower(p))
		}
	}
	return func(result *ssh.ExecResult) bool {
		stderr := strings.ToLower(result.Stderr)
		for _, p := range lowered {
			if strings.Contains(stderr, p) {
				return true
			}
		}
		return false
	}
}

// LockContention matches "Could not get lock", "dpkg frontend lock" and the like
var LockContention = MatchStderr("lock")

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner executes commands through an Executor, retrying transient failures
type Runner struct {
	exec   ssh.Executor
	sleep  Sleeper
	logger *slog.Logger
	secret string
}

// Option configures a Runner
type Option func(*Runner)

// WithSleeper replaces the blocking sleep between attempts
func WithSleeper(s Sleeper) Option {
	return func(r *Runner) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithLogger sets the logger used to report retries
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSecret redacts secret from logged commands
func WithSecret(secret string) Option {
	return func(r *Runner) {
		r.secret = secret
	}
}

// NewRunner creates a Runner over exec
func NewRunner(exec ssh.Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:   exec,
		sleep:  ContextSleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd at most policy.MaxAttempts times. It returns the first
// successful result, the first permanent failure, or the last transient
// failure once attempts are exhausted. A non-zero exit is reported through
// the result; the error is reserved for transport failures and cancellation,
// which are never retried.
func (r *Runner) Run(ctx context.Context, cmd ssh.Command, policy Policy) (*ssh.ExecResult, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		r.logger.Debug("executing command",
			"command", r.redact(cmd.String()),
			"attempt", attempt,
			"max_attempts", attempts)

		result, err := cmd.Run(ctx, r.exec)
		if err != nil {
			return result, err
		}
		if result.Success() || !policy.IsTransient(result) || attempt >= attempts {
			return result, nil
		}

		r.logger.Warn("transient failure, retrying",
			"command", r.redact(cmd.String()),
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", policy.Delay,
			"stderr", r.redact(strings.TrimSpace(result.Stderr)))

		if err := r.sleep(ctx, policy.Delay); err != nil {
			return result, err
		}
	}
}

func (r *Runner) redact(s string) string {
	return security.SanitizeCommandForLog(s, r.secret)
}
