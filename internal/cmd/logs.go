package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/systemd"
)

var logsCmd = &cobra.Command{
	Use:   "logs [host]",
	Short: "Show the service journal",
	Long: `Displays the systemd journal of the service.

Example:
  pionctl logs drone1
  pionctl logs drone1 -n 200
  pionctl logs drone1 -f`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsConn   connectionFlags
	logsFollow bool
	logsLines  int
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsConn.register(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsLines < 1 || logsLines > 100000 {
		return fmt.Errorf("invalid --lines value: must be between 1 and 100000")
	}

	cfg, err := config.LoadServiceConfig(GetConfigFile())
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(&logsConn, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(creds, cfg.Timeouts)
	defer client.Close()
	if err := client.Connect(); err != nil {
		return err
	}

	if logsFollow {
		// Runs as the login user; on Debian images it reads the journal
		// through the adm or systemd-journal group
		if err := client.ExecStream(ctx, systemd.FollowJournal(cfg.Service.Name, logsLines)); err != nil && ctx.Err() == nil {
			return fmt.Errorf("failed to follow logs: %w", err)
		}
		return nil
	}

	result, err := systemd.Journal(cfg.Service.Name, logsLines).Run(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get logs: %w", err)
	}
	fmt.Print(result.Stdout)
	if !result.Success() {
		return fmt.Errorf("journalctl exited %d: %s", result.ExitCode, result.Stderr)
	}
	return nil
}
