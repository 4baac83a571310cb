package ssh

import (
	"fmt"
	"time"
)

// ConnectionError reports a failure to establish the SSH session:
// authentication, timeout or an unreachable host. It is never retried.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExecTimeoutError reports a remote command that did not terminate in time.
type ExecTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *ExecTimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s: %s", e.Timeout, e.Command)
}
