package ssh

import (
	"time"

	"golang.org/x/crypto/ssh"
)

// Default client settings
const (
	DefaultTimeout        = 10 * time.Second
	DefaultCommandTimeout = 15 * time.Second
)

type clientOptions struct {
	timeout         time.Duration
	commandTimeout  time.Duration
	password        string
	hostKeyCallback ssh.HostKeyCallback
	insecureHostKey bool
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		timeout:        DefaultTimeout,
		commandTimeout: DefaultCommandTimeout,
	}
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

// WithTimeout sets the connection establishment timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCommandTimeout sets the timeout applied to commands that do not carry their own
func WithCommandTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.commandTimeout = d
		}
	}
}

// WithPassword sets the secret used for password authentication and privilege escalation
func WithPassword(password string) ClientOption {
	return func(o *clientOptions) {
		o.password = password
	}
}

// WithHostKeyCallback overrides known_hosts verification
func WithHostKeyCallback(cb ssh.HostKeyCallback) ClientOption {
	return func(o *clientOptions) {
		o.hostKeyCallback = cb
	}
}

// WithInsecureHostKey disables host key verification
func WithInsecureHostKey(insecure bool) ClientOption {
	return func(o *clientOptions) {
		o.insecureHostKey = insecure
	}
}
