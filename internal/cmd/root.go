package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	yesFlag   bool // CI/CD: skip confirmations

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "pionctl",
	Short: "Install and manage the Pion server on remote devices",
	Long: `pionctl installs a long-running service on a remote Linux device over
SSH and registers it with systemd so it starts at boot and restarts on
failure. It is built for single-board computers running the Pion drone
server, but every step is driven by pionctl.yaml.

Quick start:
  pionctl init                                   # Write pionctl.yaml
  pionctl install --host 10.1.100.121 --user pi  # Install or update
  pionctl status --host 10.1.100.121 --user pi   # Show service state

Commands:
  init          Write a default pionctl.yaml
  install       Install the service, or update it if already present
  remove        Stop, disable and delete the service
  status        Show whether the service is registered and running
  logs          Show the service journal
  host          Manage registered devices

CI/CD Environment Variables:
  PIONCTL_HOST                  Default registered host
  PIONCTL_PASSWORD              Login and sudo password
  PIONCTL_SSH_KEY               SSH private key content
  PIONCTL_KNOWN_HOSTS           SSH known_hosts content
  PIONCTL_SKIP_HOST_KEY_CHECK   Skip host key verification (true/false)`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := setupLogger(os.Stderr, logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintError("%v", err)
	}
	return err
}

// GetRootCmd returns the root command, for documentation generation
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Service config file (default: pionctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmations (CI/CD mode)")

	rootCmd.SetVersionTemplate(`pionctl {{.Version}}
`)
}

// setupLogger builds the structured logger selected by --log-level and --log-format
func setupLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid --log-level %q (debug, info, warn, error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (text, json)", format)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// IsYesMode returns true if --yes flag is set (CI/CD mode)
func IsYesMode() bool {
	return yesFlag
}

// PrintError prints a formatted error message
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "❌ "+msg+"\n", args...)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	fmt.Printf("✅ "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	fmt.Printf("ℹ️  "+msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	fmt.Printf("⚠️  "+msg+"\n", args...)
}

// printProgress adapts PrintInfo to the orchestrators' message callback
func printProgress(msg string) {
	PrintInfo("%s", msg)
}
