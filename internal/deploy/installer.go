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

// Installer brings a service to the installed-and-running state on one
// host. An existing service takes the short update path (pull, restart);
// otherwise every install step runs in order.
type Installer struct {
	transport ssh.Transport
	plan      *Plan
	opts      options
	runner    *retry.Runner
	probe     *systemd.Probe
}

// NewInstaller creates an installer driving t according to plan
func NewInstaller(t ssh.Transport, plan *Plan, opts ...Option) *Installer {
	o := buildOptions(plan.Service, opts)
	return &Installer{
		transport: t,
		plan:      plan,
		opts:      o,
		runner:    o.newRunner(t),
		probe:     systemd.NewProbe(t),
	}
}

// Install runs the install and reports its outcome. The transport is
// closed exactly once before Install returns, whatever happened.
func (i *Installer) Install(ctx context.Context) *Outcome {
	start := time.Now()
	state := NewInstallState(i.plan.Service)
	outcome := &Outcome{
		RunID:   i.opts.runID,
		Host:    i.opts.host,
		Service: i.plan.Service,
		Phase:   state.Phase,
	}

	defer func() {
		if err := i.transport.Close(); err != nil {
			i.opts.logger.Warn("failed to close connection", "error", err)
		}
		outcome.Phase = state.Phase
		outcome.Duration = time.Since(start)
	}()

	i.opts.message("Connecting...")
	if err := i.transport.Connect(); err != nil {
		return i.fail(ctx, state, outcome, &Failure{Stage: StageConnect, Kind: KindConnection, Err: err})
	}
	i.advance(state, PhaseConnected)

	i.opts.message("Checking for an existing service...")
	if err := ctx.Err(); err != nil {
		return i.fail(ctx, state, outcome, &Failure{Stage: StageProbe, Kind: KindInterrupted, Err: err})
	}
	exists, err := i.probe.ServiceExists(ctx, i.plan.Service)
	if err != nil {
		return i.fail(ctx, state, outcome, &Failure{
			Stage:   StageProbe,
			Kind:    classify(err),
			Command: systemd.ListUnitFiles(i.plan.Service).String(),
			Err:     err,
		})
	}
	state.Existed = exists
	i.advance(state, PhaseProbed)
	i.opts.logger.Info("probed service", "exists", exists)

	switch {
	case exists && !i.opts.reinstall:
		outcome.Path = PathUpdate
		return i.update(ctx, state, outcome)
	case exists:
		outcome.Path = PathReinstall
		i.opts.message("Removing existing service before reinstall...")
		for _, step := range runRemoval(ctx, i.runner, &i.opts, i.plan.Service, i.plan.Timeouts.Supervisor) {
			if !step.OK() {
				outcome.Warnings = append(outcome.Warnings, step.String())
			}
		}
	default:
		outcome.Path = PathFresh
	}

	return i.freshInstall(ctx, state, outcome)
}

// update refreshes the payload and restarts the service. A failed pull is
// only a warning; the service restarts on its current checkout.
func (i *Installer) update(ctx context.Context, state *InstallState, outcome *Outcome) *Outcome {
	i.advance(state, PhaseUpdatePath)

	i.opts.message("Service exists, pulling latest revision...")
	if f := i.run(ctx, StagePull, i.plan.PullCommand(), retry.Single()); f != nil {
		i.opts.logger.Warn("pull failed, restarting current revision", "error", f)
		outcome.Warnings = append(outcome.Warnings, f.Error())
	}

	i.opts.message("Restarting service...")
	if f := i.run(ctx, StageRestart, i.plan.RestartCommand(), retry.Single()); f != nil {
		return i.fail(ctx, state, outcome, f)
	}

	i.advance(state, PhaseDone)
	i.opts.logger.Info("service updated")
	return outcome
}

// installStep is one fresh-install step; skipped steps have ok == false
type installStep struct {
	stage   Stage
	message string
	cmd     ssh.Command
	ok      bool
	policy  retry.Policy
}

func (i *Installer) freshInstall(ctx context.Context, state *InstallState, outcome *Outcome) *Outcome {
	i.advance(state, PhaseFreshInstall)

	packages, hasPackages := i.plan.PackagesCommand()
	bootstrap, hasBootstrap := i.plan.BootstrapCommand()
	environment, hasEnvironment := i.plan.EnvironmentCommand()

	steps := []installStep{
		{StagePackages, "Installing system packages...", packages, hasPackages, i.plan.LockPolicy},
		{StageBootstrap, "Running bootstrap script...", bootstrap, hasBootstrap, retry.Single()},
		{StageClone, "Synchronizing repository...", i.plan.CloneCommand(), true, retry.Single()},
		{StageEnvironment, "Preparing runtime environment...", environment, hasEnvironment, retry.Single()},
	}
	for _, step := range steps {
		if !step.ok {
			i.opts.logger.Debug("step skipped", "stage", step.stage)
			continue
		}
		i.opts.message(step.message)
		if f := i.run(ctx, step.stage, step.cmd, step.policy); f != nil {
			return i.fail(ctx, state, outcome, f)
		}
	}

	i.opts.message("Writing service unit...")
	unit, err := systemd.BuildUnit(i.plan.Unit)
	if err != nil {
		return i.fail(ctx, state, outcome, &Failure{Stage: StageUnit, Kind: KindPermanent, Err: err})
	}
	// A masked unit is a link to /dev/null at the unit path; writing through
	// it would discard the unit, so the mask goes first
	if f := i.run(ctx, StageUnmask, i.plan.supervisor(systemd.Unmask(i.plan.Service)), retry.Single()); f != nil {
		if f.Kind == KindInterrupted {
			return i.fail(ctx, state, outcome, f)
		}
		i.opts.logger.Warn("unmask failed", "error", f)
		outcome.Warnings = append(outcome.Warnings, f.Error())
	}
	if f := i.run(ctx, StageUnit, i.plan.UnitCommand(unit), retry.Single()); f != nil {
		return i.fail(ctx, state, outcome, f)
	}
	i.advance(state, PhaseConfigured)

	i.opts.message("Activating service...")
	if f := i.run(ctx, StageReload, i.plan.supervisor(systemd.DaemonReload()), retry.Single()); f != nil {
		return i.fail(ctx, state, outcome, f)
	}
	if f := i.run(ctx, StageEnable, i.plan.supervisor(systemd.Enable(i.plan.Service)), retry.Single()); f != nil {
		return i.fail(ctx, state, outcome, f)
	}
	if f := i.run(ctx, StageStart, i.plan.supervisor(systemd.Start(i.plan.Service)), retry.Single()); f != nil {
		return i.fail(ctx, state, outcome, f)
	}
	i.advance(state, PhaseActivated)

	if i.plan.VerifyAttempts > 0 {
		i.verify(ctx, outcome)
	}

	i.advance(state, PhaseDone)
	i.opts.logger.Info("service installed", "path", outcome.Path)
	return outcome
}

// verify samples the unit state after start. Restart=always may still
// recover a service that is not active yet, so problems are warnings.
func (i *Installer) verify(ctx context.Context, outcome *Outcome) {
	i.opts.message("Verifying service stays active...")

	hc := NewHealthChecker(i.transport, i.plan.Service)
	hc.SetRetries(i.plan.VerifyAttempts)
	hc.SetInterval(i.plan.VerifyInterval)
	hc.SetSleeper(i.opts.sleeper)

	result, err := hc.Check(ctx)
	switch {
	case err != nil:
		i.opts.logger.Warn("health check failed", "error", err)
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("health check: %v", err))
	case !result.Healthy:
		i.opts.logger.Warn("service not active after start", "state", result.State, "attempts", result.Attempts)
		outcome.Warnings = append(outcome.Warnings, "health check: "+result.Message)
	default:
		i.opts.logger.Info("service active", "checks", result.Attempts)
	}
}

// run executes one step and converts anything but a zero exit into a Failure
func (i *Installer) run(ctx context.Context, stage Stage, cmd ssh.Command, policy retry.Policy) *Failure {
	if err := ctx.Err(); err != nil {
		return &Failure{Stage: stage, Kind: KindInterrupted, Command: i.opts.redact(cmd.String()), Err: err}
	}

	i.opts.logger.Info("running step", "stage", stage)
	result, err := i.runner.Run(ctx, cmd, policy)
	if err != nil {
		return i.newFailure(stage, classify(err), cmd, result, err)
	}
	if !result.Success() {
		kind := KindPermanent
		if policy.MaxAttempts > 1 && policy.IsTransient(result) {
			kind = KindTransient
		}
		return i.newFailure(stage, kind, cmd, result, nil)
	}
	return nil
}

func (i *Installer) newFailure(stage Stage, kind Kind, cmd ssh.Command, result *ssh.ExecResult, err error) *Failure {
	f := &Failure{
		Stage:   stage,
		Kind:    kind,
		Command: i.opts.redact(cmd.String()),
		Err:     err,
	}
	if result != nil {
		f.ExitCode = result.ExitCode
		f.Stderr = i.opts.redact(result.Stderr)
	}
	return f
}

// fail moves the run to PhaseFailed and collects diagnostics when a session
// exists. Diagnostics are best-effort and never replace f.
func (i *Installer) fail(ctx context.Context, state *InstallState, outcome *Outcome, f *Failure) *Outcome {
	i.advance(state, PhaseFailed)

	switch {
	case !state.Connected():
	case ctx.Err() != nil:
		f.Diagnostics = "diagnostics skipped: run interrupted"
	default:
		i.opts.message("Collecting diagnostics...")
		f.Diagnostics = i.collectDiagnostics(ctx)
	}

	i.opts.logger.Error("install failed",
		"stage", f.Stage,
		"kind", f.Kind,
		"exit_code", f.ExitCode,
		"error", f)
	outcome.Failure = f
	return outcome
}

func (i *Installer) collectDiagnostics(ctx context.Context) string {
	var b strings.Builder
	for _, cmd := range i.plan.DiagnosticCommands() {
		result, err := cmd.Run(ctx, i.transport)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "[%s] unavailable: %v\n", cmd.Line, err)
		case !result.Success():
			fmt.Fprintf(&b, "[%s] unavailable (exit %d): %s\n", cmd.Line, result.ExitCode, strings.TrimSpace(result.Stderr))
		default:
			b.WriteString(result.Stdout)
		}
	}
	return i.opts.redact(b.String())
}

func (i *Installer) advance(state *InstallState, to Phase) {
	from := state.Phase
	if err := state.Advance(to); err != nil {
		i.opts.logger.Error("state machine violation", "error", err)
		return
	}
	i.opts.logger.Debug("phase changed", "from", from, "to", to)
}
