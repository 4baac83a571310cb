package deploy

import (
	"context"
	"fmt"
	"path"

	"github.com/OnisOris/pionctl/internal/security"
	"github.com/OnisOris/pionctl/internal/ssh"
	"github.com/OnisOris/pionctl/internal/systemd"
)

// Inventory is what a plan's artifacts look like on a host right now
type Inventory struct {
	Service     *systemd.Status
	Checkout    bool
	Revision    string
	Environment bool
	UnitFile    bool
}

// Inspect reads the state of every artifact an install creates. It only
// runs read-only, unprivileged commands.
func Inspect(ctx context.Context, e ssh.Executor, plan *Plan) (*Inventory, error) {
	status, err := systemd.NewProbe(e).Status(ctx, plan.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to query service state: %w", err)
	}
	inv := &Inventory{Service: status}

	if inv.UnitFile, err = ssh.FileExists(ctx, e, plan.UnitPath()); err != nil {
		return nil, err
	}

	if inv.Checkout, err = ssh.DirectoryExists(ctx, e, path.Join(plan.WorkDir, ".git")); err != nil {
		return nil, err
	}
	if inv.Checkout {
		rev, err := ssh.ExecWithOutput(ctx, e,
			fmt.Sprintf("git -C %s rev-parse --short HEAD", security.ShellEscape(plan.WorkDir)))
		if err == nil {
			inv.Revision = rev
		}
	}

	if plan.Unit.Environment != "" {
		if inv.Environment, err = ssh.FileExists(ctx, e, plan.Unit.Environment); err != nil {
			return nil, err
		}
	}

	return inv, nil
}
