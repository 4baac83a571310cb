package ssh

import (
	"context"
	"time"
)

// MockCall is a single command recorded by MockExecutor.
type MockCall struct {
	Command  string
	Elevated bool
	Timeout  time.Duration
}

// MockExecutor is a test double that records commands and returns configured results.
// It also counts Connect and Close calls so tests can assert the session lifecycle.
type MockExecutor struct {
	ConnectFunc    func() error
	ExecFunc       func(ctx context.Context, command string) (*ExecResult, error)
	ElevatedFunc   func(ctx context.Context, command string) (*ExecResult, error)
	ExecStreamFunc func(ctx context.Context, command string) error
	Commands       []string
	Calls          []MockCall
	ConnectCalls   int
	CloseCalls     int
}

// Connect counts the call and delegates to ConnectFunc.
func (m *MockExecutor) Connect() error {
	m.ConnectCalls++
	if m.ConnectFunc != nil {
		return m.ConnectFunc()
	}
	return nil
}

// Exec records the command and delegates to ExecFunc.
func (m *MockExecutor) Exec(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	m.record(command, false, timeout)
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, command)
	}
	return &ExecResult{Stdout: "", Stderr: "", ExitCode: 0}, nil
}

// ExecElevated records the command and delegates to ElevatedFunc, falling
// back to ExecFunc when no elevated behaviour is configured.
func (m *MockExecutor) ExecElevated(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	m.record(command, true, timeout)
	if m.ElevatedFunc != nil {
		return m.ElevatedFunc(ctx, command)
	}
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, command)
	}
	return &ExecResult{Stdout: "", Stderr: "", ExitCode: 0}, nil
}

// ExecStream records the command and delegates to ExecStreamFunc.
func (m *MockExecutor) ExecStream(ctx context.Context, command string) error {
	m.record(command, false, 0)
	if m.ExecStreamFunc != nil {
		return m.ExecStreamFunc(ctx, command)
	}
	return nil
}

// Close counts the call.
func (m *MockExecutor) Close() error {
	m.CloseCalls++
	return nil
}

func (m *MockExecutor) record(command string, elevated bool, timeout time.Duration) {
	m.Commands = append(m.Commands, command)
	m.Calls = append(m.Calls, MockCall{Command: command, Elevated: elevated, Timeout: timeout})
}

var _ Transport = (*MockExecutor)(nil)
