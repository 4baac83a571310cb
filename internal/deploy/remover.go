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

// StepResult is the outcome of one removal step
type StepResult struct {
	Stage    Stage
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

// OK reports whether the step succeeded
func (s StepResult) OK() bool {
	return s.Err == nil && s.ExitCode == 0
}

func (s StepResult) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("%s: %v", s.Stage, s.Err)
	case s.ExitCode != 0:
		msg := fmt.Sprintf("%s: exit %d", s.Stage, s.ExitCode)
		if stderr := strings.TrimSpace(s.Stderr); stderr != "" {
			msg += ": " + lastLine(stderr)
		}
		return msg
	default:
		return fmt.Sprintf("%s: ok", s.Stage)
	}
}

// RemoveReport lists what happened to each removal step
type RemoveReport struct {
	RunID    string
	Host     string
	Service  string
	Steps    []StepResult
	Duration time.Duration
}

// Clean reports whether every step succeeded
func (r *RemoveReport) Clean() bool {
	for _, s := range r.Steps {
		if !s.OK() {
			return false
		}
	}
	return true
}

// Failed returns the steps that did not succeed
func (r *RemoveReport) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if !s.OK() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Remover stops, disables and deletes a service. Removal is best-effort:
// every step is attempted even when an earlier one failed, since a missing
// unit file does not mean the service stopped running.
type Remover struct {
	transport ssh.Transport
	service   string
	opts      options
	runner    *retry.Runner
}

// NewRemover creates a remover for service on t
func NewRemover(t ssh.Transport, service string, opts ...Option) *Remover {
	o := buildOptions(service, opts)
	return &Remover{
		transport: t,
		service:   service,
		opts:      o,
		runner:    o.newRunner(t),
	}
}

// Remove runs every removal step. Only a connection failure is returned
// as an error; step failures are recorded in the report. The transport is
// closed exactly once before Remove returns.
func (r *Remover) Remove(ctx context.Context) (*RemoveReport, error) {
	start := time.Now()
	report := &RemoveReport{
		RunID:   r.opts.runID,
		Host:    r.opts.host,
		Service: r.service,
	}

	defer func() {
		if err := r.transport.Close(); err != nil {
			r.opts.logger.Warn("failed to close connection", "error", err)
		}
		report.Duration = time.Since(start)
	}()

	r.opts.message("Connecting...")
	if err := r.transport.Connect(); err != nil {
		r.opts.logger.Error("connection failed", "error", err)
		return report, err
	}

	report.Steps = runRemoval(ctx, r.runner, &r.opts, r.service, r.opts.supervisorTimeout)
	if report.Clean() {
		r.opts.logger.Info("service removed")
	} else {
		r.opts.logger.Warn("service removed with errors", "failed_steps", len(report.Failed()))
	}
	return report, nil
}

// runRemoval attempts stop, disable, unit deletion and reload in order,
// each regardless of the others. Once ctx is done the remaining steps are
// recorded with its error and not sent to the host.
func runRemoval(ctx context.Context, runner *retry.Runner, o *options, service string, timeout time.Duration) []StepResult {
	steps := []struct {
		stage   Stage
		message string
		cmd     ssh.Command
	}{
		{StageStop, "Stopping service...", systemd.Stop(service)},
		{StageDisable, "Disabling service...", systemd.Disable(service)},
		{StageRemoveUnit, "Deleting unit file...", systemd.RemoveUnit(service)},
		{StageReload, "Reloading supervisor...", systemd.DaemonReload()},
	}

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		cmd := step.cmd
		if timeout > 0 {
			cmd.Timeout = timeout
		}
		o.message(step.message)

		res := StepResult{Stage: step.stage, Command: o.redact(cmd.String())}
		if err := ctx.Err(); err != nil {
			res.Err = err
			o.logger.Warn("removal step skipped, run interrupted", "stage", step.stage)
			results = append(results, res)
			continue
		}
		result, err := runner.Run(ctx, cmd, retry.Single())
		if result != nil {
			res.ExitCode = result.ExitCode
			res.Stderr = o.redact(result.Stderr)
		}
		res.Err = err

		if res.OK() {
			o.logger.Info("removal step done", "stage", step.stage)
		} else {
			o.logger.Warn("removal step failed, continuing", "stage", step.stage, "result", res.String())
		}
		results = append(results, res)
	}
	return results
}
