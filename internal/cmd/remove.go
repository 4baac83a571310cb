package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/deploy"
)

var removeCmd = &cobra.Command{
	Use:   "remove [host]",
	Short: "Stop, disable and delete the service",
	Long: `Stops and disables the service, deletes its unit file and reloads
systemd. Every step is attempted even if an earlier one fails. The
checkout and Python environment are left in place.

Examples:
  pionctl remove drone1
  pionctl remove --host 10.1.100.121 --user pi --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemove,
}

var removeConn connectionFlags

func init() {
	rootCmd.AddCommand(removeCmd)
	removeConn.register(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServiceConfig(GetConfigFile())
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(&removeConn, args)
	if err != nil {
		return err
	}

	client := newClient(creds, cfg.Timeouts)
	if !PromptConfirm(fmt.Sprintf("Remove %s from %s?", cfg.Service.Name, client.Addr())) {
		return fmt.Errorf("removal not confirmed (use --yes in non-interactive mode)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remover := deploy.NewRemover(client, cfg.Service.Name,
		deploy.WithLogger(logger),
		deploy.WithHost(client.Addr()),
		deploy.WithSecret(creds.Secret),
		deploy.WithSupervisorTimeout(cfg.Timeouts.Supervisor),
		deploy.OnMessage(printProgress),
	)

	report, err := remover.Remove(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if report.Clean() {
		PrintSuccess("Service %s removed", report.Service)
		return nil
	}

	for _, step := range report.Failed() {
		PrintWarning("%s", step.String())
	}
	return fmt.Errorf("%d of %d removal steps failed (run %s)", len(report.Failed()), len(report.Steps), report.RunID)
}
