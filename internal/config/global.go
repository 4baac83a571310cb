package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/security"
)

const (
	// GlobalConfigDir is the configuration directory name
	GlobalConfigDir = "pionctl"
	// GlobalConfigFile is the global config filename
	GlobalConfigFile = "config.yaml"
)

// GetGlobalConfigPath returns the path to the global config file
func GetGlobalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, GlobalConfigDir, GlobalConfigFile), nil
}

// LoadGlobalConfig loads the global configuration
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetGlobalConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobalConfig(), nil
		}
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse global config: %w", err)
	}

	if config.Hosts == nil {
		config.Hosts = make(map[string]HostConfig)
	}

	return &config, nil
}

// SaveGlobalConfig saves the global configuration
func SaveGlobalConfig(config *GlobalConfig) error {
	path, err := GetGlobalConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	// SECURITY: Use 0700 to restrict directory access to owner only
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// SECURITY: Use 0600 to restrict file access to owner only (host inventory)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write global config: %w", err)
	}

	return nil
}

// GetHost retrieves a host configuration by name
func (c *GlobalConfig) GetHost(name string) (*HostConfig, error) {
	host, ok := c.Hosts[name]
	if !ok {
		return nil, fmt.Errorf("host '%s' not found (see 'pionctl host list')", name)
	}
	if host.Port == 0 {
		host.Port = c.defaultPort()
	}
	return &host, nil
}

// AddHost adds a new host to the configuration
func (c *GlobalConfig) AddHost(name string, host HostConfig) error {
	if err := security.ValidateHostName(name); err != nil {
		return err
	}
	if _, exists := c.Hosts[name]; exists {
		return fmt.Errorf("host '%s' already exists", name)
	}

	if host.User == "" {
		host.User = c.DefaultUser
	}
	if host.Port == 0 {
		host.Port = c.defaultPort()
	}

	if errs := ValidateHostConfig(&host); errs.HasErrors() {
		return errs
	}

	if c.Hosts == nil {
		c.Hosts = make(map[string]HostConfig)
	}
	c.Hosts[name] = host
	return nil
}

// RemoveHost removes a host from the configuration
func (c *GlobalConfig) RemoveHost(name string) error {
	if _, exists := c.Hosts[name]; !exists {
		return fmt.Errorf("host '%s' not found", name)
	}

	delete(c.Hosts, name)
	return nil
}

// ListHosts returns all host names, sorted
func (c *GlobalConfig) ListHosts() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *GlobalConfig) defaultPort() int {
	if c.DefaultPort != 0 {
		return c.DefaultPort
	}
	return constants.DefaultSSHPort
}
