package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// ServiceConfigFile is the default service config filename
	ServiceConfigFile = "pionctl.yaml"
)

// LoadServiceConfig loads the service configuration from the given path.
// When the default file is absent the Pion server defaults are used; an
// explicitly named file must exist.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	explicit := path != ""
	if !explicit {
		path = ServiceConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return DefaultServiceConfig(), nil
		}
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s (run 'pionctl init' first)", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// zero is a valid restart_sec and retry.delay, so their defaults are
	// seeded before decoding instead of filled in by ApplyDefaults
	d := DefaultServiceConfig()
	config := ServiceConfig{
		Service: ServiceSection{RestartSec: d.Service.RestartSec},
		Retry:   RetrySection{Delay: d.Retry.Delay},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.ApplyDefaults()

	if errs := ValidateServiceConfig(&config); errs.HasErrors() {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, errs)
	}

	return &config, nil
}

// SaveServiceConfig saves the service configuration to the given path
func SaveServiceConfig(config *ServiceConfig, path string) error {
	if path == "" {
		path = ServiceConfigFile
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ServiceConfigExists checks if the service config file exists
func ServiceConfigExists(path string) bool {
	if path == "" {
		path = ServiceConfigFile
	}
	_, err := os.Stat(path)
	return err == nil
}
