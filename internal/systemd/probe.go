package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/ssh"
)

// Probe inspects the supervisor on the remote host. It never changes state.
type Probe struct {
	exec ssh.Executor
}

// NewProbe creates a probe over exec
func NewProbe(exec ssh.Executor) *Probe {
	return &Probe{exec: exec}
}

// ServiceExists reports whether name is registered with the supervisor: the
// listing must succeed and mention "<name>.service". An error is returned
// only when the command could not be run.
func (p *Probe) ServiceExists(ctx context.Context, name string) (bool, error) {
	result, err := ListUnitFiles(name).Run(ctx, p.exec)
	if err != nil {
		return false, fmt.Errorf("failed to query unit files: %w", err)
	}
	return result.Success() && strings.Contains(result.Stdout, constants.UnitFileName(name)), nil
}

// Status is a snapshot of a service's supervisor state
type Status struct {
	Exists  bool
	Active  string // is-active output, e.g. "active", "failed", "inactive"
	Enabled string // is-enabled output, e.g. "enabled", "disabled", "masked"
}

// Running reports whether the service is currently active
func (s Status) Running() bool {
	return s.Active == "active"
}

// Status collects registration, runtime and boot state for name
func (p *Probe) Status(ctx context.Context, name string) (*Status, error) {
	exists, err := p.ServiceExists(ctx, name)
	if err != nil {
		return nil, err
	}
	status := &Status{Exists: exists}
	if !exists {
		return status, nil
	}

	// is-active and is-enabled exit non-zero for inactive or disabled units,
	// their stdout still carries the state
	active, err := IsActive(name).Run(ctx, p.exec)
	if err != nil {
		return nil, fmt.Errorf("failed to query active state: %w", err)
	}
	status.Active = strings.TrimSpace(active.Stdout)

	enabled, err := IsEnabled(name).Run(ctx, p.exec)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled state: %w", err)
	}
	status.Enabled = strings.TrimSpace(enabled.Stdout)

	return status, nil
}
