package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OnisOris/pionctl/internal/retry"
	"github.com/OnisOris/pionctl/internal/ssh"
	"github.com/OnisOris/pionctl/internal/systemd"
)

// HealthChecker confirms that a freshly started service stays active.
// systemctl start returns as soon as the process is spawned, so a payload
// that crashes on import would otherwise look like a successful install.
type HealthChecker struct {
	exec     ssh.Executor
	service  string
	retries  int
	interval time.Duration
	sleep    retry.Sleeper
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(exec ssh.Executor, service string) *HealthChecker {
	return &HealthChecker{
		exec:     exec,
		service:  service,
		retries:  3,
		interval: 2 * time.Second,
		sleep:    retry.ContextSleep,
	}
}

// SetRetries sets the number of checks
func (h *HealthChecker) SetRetries(retries int) {
	h.retries = retries
}

// SetInterval sets the wait before each check
func (h *HealthChecker) SetInterval(interval time.Duration) {
	h.interval = interval
}

// SetSleeper replaces the blocking wait between checks
func (h *HealthChecker) SetSleeper(s retry.Sleeper) {
	if s != nil {
		h.sleep = s
	}
}

// HealthResult contains the result of a health check
type HealthResult struct {
	Healthy  bool
	State    string
	Message  string
	Attempts int
}

// Check waits one interval, then requires every one of the configured
// checks to report "active". A service that crash-loops under Restart=always
// flips between activating and failed, so a single good sample is not enough.
func (h *HealthChecker) Check(ctx context.Context) (*HealthResult, error) {
	result := &HealthResult{}

	for attempt := 1; attempt <= h.retries; attempt++ {
		result.Attempts = attempt

		if err := h.sleep(ctx, h.interval); err != nil {
			return result, err
		}

		out, err := systemd.IsActive(h.service).Run(ctx, h.exec)
		if err != nil {
			return result, fmt.Errorf("failed to query service state: %w", err)
		}

		result.State = strings.TrimSpace(out.Stdout)
		if result.State != "active" {
			result.Message = fmt.Sprintf("service is %s after %d check(s)", stateOrUnknown(result.State), attempt)
			return result, nil
		}
	}

	result.Healthy = true
	result.Message = "active"
	return result, nil
}

func stateOrUnknown(state string) string {
	if state == "" {
		return "in an unknown state"
	}
	return state
}
