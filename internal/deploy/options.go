package deploy

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/OnisOris/pionctl/internal/retry"
	"github.com/OnisOris/pionctl/internal/security"
	"github.com/OnisOris/pionctl/internal/ssh"
)

type options struct {
	logger            *slog.Logger
	sleeper           retry.Sleeper
	runID             string
	host              string
	secret            string
	reinstall         bool
	supervisorTimeout time.Duration
	onMessage         func(string)
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
	}
}

// Option configures an Installer or a Remover
type Option func(*options)

// WithLogger sets the structured logger for the run
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSleeper replaces the delay between retries
func WithSleeper(s retry.Sleeper) Option {
	return func(o *options) {
		o.sleeper = s
	}
}

// WithRunID sets the correlation id; a fresh ULID is used otherwise
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithHost records the target address in logs and results
func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

// WithSecret redacts secret from everything logged or reported
func WithSecret(secret string) Option {
	return func(o *options) {
		o.secret = secret
	}
}

// WithReinstall removes an existing service and installs it from scratch
// instead of taking the update path
func WithReinstall(reinstall bool) Option {
	return func(o *options) {
		o.reinstall = reinstall
	}
}

// WithSupervisorTimeout overrides the timeout of each removal step
func WithSupervisorTimeout(d time.Duration) Option {
	return func(o *options) {
		o.supervisorTimeout = d
	}
}

// OnMessage sets a callback for human-readable progress messages
func OnMessage(fn func(string)) Option {
	return func(o *options) {
		o.onMessage = fn
	}
}

// NewRunID returns a new correlation id for a run
func NewRunID() string {
	return ulid.Make().String()
}

func buildOptions(service string, opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = NewRunID()
	}
	o.logger = o.logger.With("run_id", o.runID, "host", o.host, "service", service)
	return o
}

func (o *options) message(msg string) {
	if o.onMessage != nil {
		o.onMessage(msg)
	}
}

func (o *options) newRunner(exec ssh.Executor) *retry.Runner {
	return retry.NewRunner(exec,
		retry.WithSleeper(o.sleeper),
		retry.WithLogger(o.logger),
		retry.WithSecret(o.secret),
	)
}

func (o *options) redact(s string) string {
	return security.SanitizeCommandForLog(s, o.secret)
}
