package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/security"
	"github.com/OnisOris/pionctl/internal/ssh"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage registered devices",
	Long: `Commands to add, list, and remove devices. A registered device can be
named instead of passing --host, --user and --port on every command.
Passwords are never stored.`,
}

var hostAddCmd = &cobra.Command{
	Use:   "add <name> <[user@]host>",
	Short: "Register a device",
	Long: `Adds a device to the global configuration.

Example:
  pionctl host add drone1 pi@10.1.100.121
  pionctl host add radxa radxa@radxa-zero.local --key ~/.ssh/id_ed25519
  pionctl host add bench 192.168.1.40 --port 2222 --test`,
	Args: cobra.ExactArgs(2),
	RunE: runHostAdd,
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	RunE:  runHostList,
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered device",
	Args:  cobra.ExactArgs(1),
	RunE:  runHostRemove,
}

var (
	hostPort            int
	hostKeyPath         string
	hostInsecureHostKey bool
	hostTest            bool
)

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.AddCommand(hostAddCmd)
	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostRemoveCmd)

	hostAddCmd.Flags().IntVarP(&hostPort, "port", "p", 0, "SSH port (default: 22)")
	hostAddCmd.Flags().StringVarP(&hostKeyPath, "key", "k", "", "SSH private key path")
	hostAddCmd.Flags().BoolVar(&hostInsecureHostKey, "insecure-host-key", false, "Skip host key verification for this device")
	hostAddCmd.Flags().BoolVar(&hostTest, "test", false, "Test the SSH connection after adding")
}

func runHostAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := security.ValidateHostName(name); err != nil {
		return fmt.Errorf("invalid host name: %w", err)
	}

	user, host, err := parseHostSpec(args[1])
	if err != nil {
		return err
	}

	if hostKeyPath != "" {
		key, err := ssh.InspectKey(expandHome(hostKeyPath))
		if err != nil {
			return fmt.Errorf("invalid --key: %w", err)
		}
		if key.IsEncrypted {
			return fmt.Errorf("key %s is passphrase-protected; load it into ssh-agent or use an unencrypted deploy key", key.Name)
		}
		PrintInfo("Using %s key %s", key.Type, key.Name)
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	hostCfg := config.HostConfig{
		Host:            host,
		User:            user,
		Port:            hostPort,
		KeyPath:         hostKeyPath,
		InsecureHostKey: hostInsecureHostKey,
	}
	if err := globalCfg.AddHost(name, hostCfg); err != nil {
		return err
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	added, _ := globalCfg.GetHost(name)
	PrintSuccess("Added host '%s' (%s@%s:%d)", name, added.User, added.Host, added.Port)

	if hostTest {
		if err := testConnection(name); err != nil {
			PrintWarning("SSH connection could not be established: %v", err)
			PrintInfo("You can test the connection manually with: ssh %s@%s -p %d", added.User, added.Host, added.Port)
		}
	}
	return nil
}

// testConnection opens and closes a session to a registered host
func testConnection(name string) error {
	PrintInfo("Testing SSH connection...")

	creds, err := resolveCredentials(&connectionFlags{}, []string{name})
	if err != nil {
		return err
	}
	client := newClient(creds, config.TimeoutsSection{})
	defer client.Close()
	if err := client.Connect(); err != nil {
		return err
	}

	PrintSuccess("SSH connection successful")
	return nil
}

func runHostList(cmd *cobra.Command, args []string) error {
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	names := globalCfg.ListHosts()
	if len(names) == 0 {
		PrintInfo("No hosts registered. Add one with 'pionctl host add <name> <user@host>'")
		return nil
	}

	fmt.Print(formatHostList(globalCfg, names))
	return nil
}

func formatHostList(globalCfg *config.GlobalConfig, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-32s %s\n", "NAME", "ADDRESS", "KEY")
	for _, name := range names {
		h, err := globalCfg.GetHost(name)
		if err != nil {
			continue
		}
		key := h.KeyPath
		if key == "" {
			key = "-"
		}
		fmt.Fprintf(&b, "%-16s %-32s %s\n", name, fmt.Sprintf("%s@%s:%d", h.User, h.Host, h.Port), key)
	}
	return b.String()
}

func runHostRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	if err := globalCfg.RemoveHost(name); err != nil {
		return err
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Removed host '%s'", name)
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
