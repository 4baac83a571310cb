package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/deploy"
)

var installCmd = &cobra.Command{
	Use:   "install [host]",
	Short: "Install the service, or update it if already present",
	Long: `Connects to a device and brings the service to the installed and
running state.

If the service is already registered with systemd, the repository is
pulled and the service restarted. Otherwise system packages, the
bootstrap script, the repository and the Python environment are
installed, then a unit file is written, enabled and started.

Examples:
  pionctl install --host 10.1.100.121 --user pi
  pionctl install drone1
  pionctl install drone1 --reinstall
  PIONCTL_PASSWORD=raspberry pionctl install --host radxa.local --user radxa`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

var (
	installConn      connectionFlags
	installReinstall bool
)

func init() {
	rootCmd.AddCommand(installCmd)
	installConn.register(installCmd)
	installCmd.Flags().BoolVar(&installReinstall, "reinstall", false, "Remove an existing service and install from scratch")
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServiceConfig(GetConfigFile())
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(&installConn, args)
	if err != nil {
		return err
	}

	plan, err := deploy.NewPlan(cfg, creds.User)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(creds, cfg.Timeouts)
	installer := deploy.NewInstaller(client, plan,
		deploy.WithLogger(logger),
		deploy.WithHost(client.Addr()),
		deploy.WithSecret(creds.Secret),
		deploy.WithReinstall(installReinstall),
		deploy.OnMessage(printProgress),
	)

	PrintInfo("Installing %s on %s@%s", plan.Service, creds.User, client.Addr())
	outcome := installer.Install(ctx)

	for _, w := range outcome.Warnings {
		PrintWarning("%s", w)
	}
	if !outcome.Success() {
		printFailure(outcome)
		return fmt.Errorf("install of %s failed at %s (run %s)", outcome.Service, outcome.Failure.Stage, outcome.RunID)
	}

	switch outcome.Path {
	case deploy.PathUpdate:
		PrintSuccess("Service %s updated and restarted in %s", outcome.Service, outcome.Duration.Round(100*time.Millisecond))
	default:
		PrintSuccess("Service %s installed and started in %s", outcome.Service, outcome.Duration.Round(100*time.Millisecond))
	}
	return nil
}

// printFailure writes the diagnostic summary of a failed run to stderr
func printFailure(outcome *deploy.Outcome) {
	fmt.Fprint(os.Stderr, formatFailure(outcome))
}

func formatFailure(outcome *deploy.Outcome) string {
	f := outcome.Failure
	if f == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nStage:   %s\n", f.Stage)
	fmt.Fprintf(&b, "Kind:    %s\n", f.Kind)
	if f.Command != "" {
		fmt.Fprintf(&b, "Command: %s\n", f.Command)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, "Error:   %v\n", f.Err)
	} else {
		fmt.Fprintf(&b, "Exit:    %d\n", f.ExitCode)
	}
	if stderr := strings.TrimSpace(f.Stderr); stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s\n", indent(stderr))
	}
	if diag := strings.TrimSpace(f.Diagnostics); diag != "" {
		fmt.Fprintf(&b, "\nDiagnostics:\n%s\n", indent(diag))
	}
	if f.Kind == deploy.KindInterrupted && errors.Is(f.Err, context.Canceled) {
		b.WriteString("\nRun interrupted; the device may be partially configured. Rerun install to continue.\n")
	}
	return b.String()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
