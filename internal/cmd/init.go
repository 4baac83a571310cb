package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default pionctl.yaml",
	Long: `Creates a pionctl.yaml configuration file describing the service to
install: its repository, runtime, system dependencies, retry policy and
timeouts. The defaults install the Pion drone server.`,
	RunE: runInit,
}

var (
	initName       string
	initRepository string
	initDirectory  string
	initCommand    string
	initForce      bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initName, "name", "n", "", "Service name (default: pion_server)")
	initCmd.Flags().StringVar(&initRepository, "repo", "", "Git repository to deploy")
	initCmd.Flags().StringVar(&initDirectory, "dir", "", "Checkout directory, relative to the login user's home")
	initCmd.Flags().StringVar(&initCommand, "command", "", "Command the service runs inside the checkout")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if config.ServiceConfigExists(path) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configFileName(path))
	}

	cfg := config.DefaultServiceConfig()
	if initName != "" {
		cfg.Service.Name = initName
		cfg.Service.Description = initName
	}
	if initRepository != "" {
		cfg.Source.Repository = initRepository
	}
	if initDirectory != "" {
		cfg.Source.Directory = initDirectory
	}
	if initCommand != "" {
		cfg.Runtime.Command = initCommand
	}

	if errs := config.ValidateServiceConfig(cfg); errs.HasErrors() {
		return fmt.Errorf("invalid configuration: %w", errs)
	}

	if err := config.SaveServiceConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	PrintSuccess("Created %s", configFileName(path))
	printInitSummary(cfg)
	return nil
}

func configFileName(path string) string {
	if path == "" {
		return config.ServiceConfigFile
	}
	return path
}

func printInitSummary(cfg *config.ServiceConfig) {
	fmt.Println()
	fmt.Println("📋 Service Configuration:")
	fmt.Printf("   Name:        %s\n", cfg.Service.Name)
	fmt.Printf("   Repository:  %s\n", cfg.Source.Repository)
	dir := cfg.Source.Directory
	if !strings.HasPrefix(dir, "/") {
		dir = "~/" + dir
	}
	fmt.Printf("   Directory:   %s\n", dir)
	fmt.Printf("   Command:     %s\n", cfg.Runtime.Command)
	if len(cfg.Dependencies.Packages) > 0 {
		fmt.Printf("   Packages:    %s\n", strings.Join(cfg.Dependencies.Packages, ", "))
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review pionctl.yaml and adjust if needed")
	fmt.Println("  2. Run 'pionctl install --host <address> --user <user>'")
}
