package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/deploy"
)

var statusCmd = &cobra.Command{
	Use:   "status [host]",
	Short: "Show whether the service is registered and running",
	Long: `Connects to a device and reports whether the service unit exists,
whether it is active and whether it starts at boot, along with the
checked out revision and the Python environment.

Examples:
  pionctl status drone1
  pionctl status --host 10.1.100.121 --user pi`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusConn connectionFlags

func init() {
	rootCmd.AddCommand(statusCmd)
	statusConn.register(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadServiceConfig(GetConfigFile())
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(&statusConn, args)
	if err != nil {
		return err
	}

	plan, err := deploy.NewPlan(cfg, creds.User)
	if err != nil {
		return err
	}

	client := newClient(creds, cfg.Timeouts)
	defer client.Close()
	if err := client.Connect(); err != nil {
		return err
	}

	inv, err := deploy.Inspect(ctx, client, plan)
	if err != nil {
		return err
	}

	fmt.Print(formatStatus(plan, client.Addr(), inv))
	if inv.Service.Exists && !inv.Service.Running() {
		return fmt.Errorf("service %s is %s", plan.Service, inv.Service.Active)
	}
	return nil
}

func formatStatus(plan *deploy.Plan, addr string, inv *deploy.Inventory) string {
	var b strings.Builder
	if !inv.Service.Exists {
		fmt.Fprintf(&b, "%s on %s: not installed\n", plan.Service, addr)
	} else {
		fmt.Fprintf(&b, "%s on %s:\n", plan.Service, addr)
		fmt.Fprintf(&b, "   Active:      %s\n", inv.Service.Active)
		fmt.Fprintf(&b, "   Enabled:     %s\n", inv.Service.Enabled)
	}

	fmt.Fprintf(&b, "   Unit file:   %s\n", presence(inv.UnitFile, plan.UnitPath()))
	checkout := presence(inv.Checkout, plan.WorkDir)
	if inv.Revision != "" {
		checkout += " @ " + inv.Revision
	}
	fmt.Fprintf(&b, "   Checkout:    %s\n", checkout)
	if plan.EnvDir != "" {
		fmt.Fprintf(&b, "   Environment: %s\n", presence(inv.Environment, plan.EnvDir))
	}
	return b.String()
}

func presence(ok bool, path string) string {
	if ok {
		return path
	}
	return path + " (missing)"
}
