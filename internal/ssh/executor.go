package ssh

import (
	"context"
	"time"
)

// Executor abstracts remote command execution for testability.
type Executor interface {
	Exec(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)
	ExecElevated(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)
	ExecStream(ctx context.Context, command string) error
	Close() error
}

// Transport is an Executor that owns the connection lifecycle.
type Transport interface {
	Executor
	Connect() error
}

var _ Transport = (*Client)(nil)
