package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/OnisOris/pionctl/internal/security"
)

// ExecResult holds the result of a command execution
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success returns true if the command exited with status zero
func (r *ExecResult) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Command is a remote command together with how it must be run
type Command struct {
	Line     string
	Elevated bool
	Timeout  time.Duration
}

// Run executes the command on e
func (c Command) Run(ctx context.Context, e Executor) (*ExecResult, error) {
	if c.Elevated {
		return e.ExecElevated(ctx, c.Line, c.Timeout)
	}
	return e.Exec(ctx, c.Line, c.Timeout)
}

func (c Command) String() string {
	if c.Elevated {
		return "sudo " + c.Line
	}
	return c.Line
}

// Exec executes a command on the remote server on a fresh channel.
// A non-zero exit status is reported in the result, not as an error.
func (c *Client) Exec(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	return c.run(ctx, command, nil, timeout)
}

// ExecElevated executes a command through sudo. The stored password is
// written to sudo's prompt on stdin, so it never appears on a command line.
func (c *Client) ExecElevated(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	var stdin io.Reader
	if c.opts.password != "" {
		stdin = strings.NewReader(c.opts.password + "\n")
	}
	return c.run(ctx, ElevateCommand(command), stdin, timeout)
}

// ElevateCommand wraps command so that it runs as root through sudo,
// reading the password from stdin without printing a prompt.
func ElevateCommand(command string) string {
	return "sudo -S -k -p '' sh -c " + security.ShellEscape(command)
}

func (c *Client) run(ctx context.Context, command string, stdin io.Reader, timeout time.Duration) (*ExecResult, error) {
	if timeout <= 0 {
		timeout = c.opts.commandTimeout
	}

	session, err := c.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		_ = session.Signal(ssh.SIGKILL)
		return nil, &ExecTimeoutError{Command: command, Timeout: timeout}
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		return nil, ctx.Err()
	}

	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("failed to execute command: %w", err)
	}

	return result, nil
}

// ExecStream executes a command and streams output to stdout/stderr
func (c *Client) ExecStream(ctx context.Context, command string) error {
	session, err := c.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		return ctx.Err()
	}
}

// ExecWithOutput executes a command and returns its trimmed stdout,
// turning a non-zero exit status into an error
func ExecWithOutput(ctx context.Context, e Executor, command string) (string, error) {
	result, err := e.Exec(ctx, command, 0)
	if err != nil {
		return "", err
	}

	output := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 {
		errMsg := strings.TrimSpace(result.Stderr)
		if errMsg == "" {
			errMsg = output
		}
		return output, fmt.Errorf("command failed (exit %d): %s", result.ExitCode, errMsg)
	}

	return output, nil
}
