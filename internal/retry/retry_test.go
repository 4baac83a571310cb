package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/ssh"
)

// lockAware is the package-manager policy of the default configuration
func lockAware() Policy {
	return Policy{
		MaxAttempts: constants.DefaultRetryAttempts,
		Delay:       constants.DefaultRetryDelay,
		Transient:   LockContention,
	}
}

// recordingSleeper records requested delays without blocking
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sequence returns the given results in order, repeating the last one
func sequence(results ...*ssh.ExecResult) func(context.Context, string) (*ssh.ExecResult, error) {
	i := 0
	return func(ctx context.Context, command string) (*ssh.ExecResult, error) {
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r, nil
	}
}

var (
	lockFailure = &ssh.ExecResult{
		Stderr:   "E: Could not get lock /var/lib/dpkg/lock-frontend. It is held by process 1234 (unattended-upgr)\n",
		ExitCode: 100,
	}
	permanentFailure = &ssh.ExecResult{
		Stderr:   "E: Unable to locate package pyhton3\n",
		ExitCode: 100,
	}
	ok = &ssh.ExecResult{Stdout: "done\n"}
)

func TestRun_RetryBound(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
	}{
		{"single attempt", 1},
		{"two attempts", 2},
		{"default attempts", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &ssh.MockExecutor{ElevatedFunc: sequence(lockFailure)}
			sleeper := &recordingSleeper{}
			runner := NewRunner(mock, WithSleeper(sleeper.sleep), WithLogger(quietLogger()))

			policy := Policy{MaxAttempts: tt.maxAttempts, Delay: 5 * time.Second, Transient: LockContention}
			result, err := runner.Run(context.Background(), ssh.Command{Line: "apt-get install -y git", Elevated: true}, policy)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result != lockFailure {
				t.Errorf("expected the last failing result, got %+v", result)
			}
			if len(mock.Calls) != tt.maxAttempts {
				t.Errorf("executions = %d, want %d", len(mock.Calls), tt.maxAttempts)
			}
			if len(sleeper.delays) != tt.maxAttempts-1 {
				t.Errorf("delays = %d, want %d", len(sleeper.delays), tt.maxAttempts-1)
			}
			for _, d := range sleeper.delays {
				if d != 5*time.Second {
					t.Errorf("delay = %v, want 5s", d)
				}
			}
		})
	}
}

func TestRun_PermanentFailsFast(t *testing.T) {
	mock := &ssh.MockExecutor{ElevatedFunc: sequence(permanentFailure)}
	sleeper := &recordingSleeper{}
	runner := NewRunner(mock, WithSleeper(sleeper.sleep), WithLogger(quietLogger()))

	result, err := runner.Run(context.Background(), ssh.Command{Line: "apt-get install -y pyhton3", Elevated: true}, lockAware())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 100 {
		t.Errorf("ExitCode = %d, want 100", result.ExitCode)
	}
	if len(mock.Calls) != 1 {
		t.Errorf("executions = %d, want 1", len(mock.Calls))
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("expected no delay, got %v", sleeper.delays)
	}
}

func TestRun_LockThenSuccess(t *testing.T) {
	mock := &ssh.MockExecutor{ElevatedFunc: sequence(lockFailure, lockFailure, lockFailure, ok)}
	sleeper := &recordingSleeper{}
	runner := NewRunner(mock, WithSleeper(sleeper.sleep), WithLogger(quietLogger()))

	result, err := runner.Run(context.Background(), ssh.Command{Line: "apt-get update", Elevated: true}, lockAware())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success() {
		t.Errorf("expected success, got %+v", result)
	}
	if len(mock.Calls) != 4 {
		t.Errorf("executions = %d, want 4", len(mock.Calls))
	}
	if len(sleeper.delays) != 3 {
		t.Errorf("delays = %d, want 3", len(sleeper.delays))
	}
}

func TestRun_TransportErrorNotRetried(t *testing.T) {
	timeout := &ssh.ExecTimeoutError{Command: "apt-get update", Timeout: time.Second}
	mock := &ssh.MockExecutor{
		ElevatedFunc: func(ctx context.Context, command string) (*ssh.ExecResult, error) {
			return nil, timeout
		},
	}
	sleeper := &recordingSleeper{}
	runner := NewRunner(mock, WithSleeper(sleeper.sleep), WithLogger(quietLogger()))

	_, err := runner.Run(context.Background(), ssh.Command{Line: "apt-get update", Elevated: true}, lockAware())
	var timeoutErr *ssh.ExecTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected ExecTimeoutError, got %v", err)
	}
	if len(mock.Calls) != 1 {
		t.Errorf("executions = %d, want 1", len(mock.Calls))
	}
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	mock := &ssh.MockExecutor{ElevatedFunc: sequence(lockFailure)}
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(mock,
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
		WithLogger(quietLogger()),
	)

	_, err := runner.Run(ctx, ssh.Command{Line: "apt-get update", Elevated: true}, lockAware())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(mock.Calls) != 1 {
		t.Errorf("executions = %d, want 1", len(mock.Calls))
	}
}

func TestRun_ZeroAttemptsTreatedAsOne(t *testing.T) {
	mock := &ssh.MockExecutor{ExecFunc: sequence(lockFailure)}
	runner := NewRunner(mock, WithLogger(quietLogger()))

	if _, err := runner.Run(context.Background(), ssh.Command{Line: "true"}, Policy{Transient: LockContention}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(mock.Calls) != 1 {
		t.Errorf("executions = %d, want 1", len(mock.Calls))
	}
}

func TestMatchStderr(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		stderr   string
		want     bool
	}{
		{"lock lowercase", []string{"lock"}, "could not get lock", true},
		{"lock mixed case", []string{"lock"}, "Could not get LOCK /var/lib/dpkg", true},
		{"no match", []string{"lock"}, "Unable to locate package", false},
		{"second pattern", []string{"lock", "Temporary failure resolving"}, "Temporary failure resolving 'deb.debian.org'", true},
		{"blank pattern ignored", []string{" "}, "anything", false},
		{"empty stderr", []string{"lock"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchStderr(tt.patterns...)(&ssh.ExecResult{Stderr: tt.stderr, ExitCode: 1})
			if got != tt.want {
				t.Errorf("MatchStderr(%v)(%q) = %v, want %v", tt.patterns, tt.stderr, got, tt.want)
			}
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"single", Single(), false},
		{"lock aware", lockAware(), false},
		{"zero attempts", Policy{}, true},
		{"negative delay", Policy{MaxAttempts: 2, Delay: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContextSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := ContextSleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("ContextSleep did not return on cancellation")
	}

	if err := ContextSleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
