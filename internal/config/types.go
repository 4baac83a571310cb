package config

import (
	"time"

	"github.com/OnisOris/pionctl/internal/constants"
)

// ServiceConfig represents the pionctl.yaml configuration
type ServiceConfig struct {
	Service      ServiceSection      `yaml:"service"`
	Source       SourceSection       `yaml:"source"`
	Runtime      RuntimeSection      `yaml:"runtime"`
	Dependencies DependenciesSection `yaml:"dependencies,omitempty"`
	Retry        RetrySection        `yaml:"retry,omitempty"`
	Timeouts     TimeoutsSection     `yaml:"timeouts,omitempty"`
	Diagnostics  DiagnosticsSection  `yaml:"diagnostics,omitempty"`
}

// ServiceSection describes the supervised service itself
type ServiceSection struct {
	Name        string        `yaml:"name" validate:"required"`
	Description string        `yaml:"description,omitempty"`
	Restart     string        `yaml:"restart,omitempty" validate:"omitempty,oneof=no always on-success on-failure on-abnormal on-abort on-watchdog"`
	RestartSec  time.Duration `yaml:"restart_sec" validate:"gte=0,lte=10m"`
	// LogMode routes the service output: null discards it, journal sends it
	// to the system journal, file appends it to LogFile
	LogMode string `yaml:"log_mode,omitempty" validate:"omitempty,oneof=null journal file"`
	LogFile string `yaml:"log_file,omitempty" validate:"required_if=LogMode file"`
}

// SourceSection describes where the payload comes from
type SourceSection struct {
	Repository string `yaml:"repository" validate:"required"`
	// Directory is the checkout location, relative to the remote user's home
	// unless absolute
	Directory string `yaml:"directory" validate:"required"`
}

// RuntimeSection describes the isolated environment and the start command
type RuntimeSection struct {
	Interpreter  string `yaml:"interpreter" validate:"required"`
	EnvDir       string `yaml:"env_dir,omitempty"`
	Requirements string `yaml:"requirements,omitempty"`
	Command      string `yaml:"command" validate:"required"`
	PullOnStart  bool   `yaml:"pull_on_start,omitempty"`
}

// DependenciesSection lists what the host needs before the payload can run
type DependenciesSection struct {
	Packages []string `yaml:"packages,omitempty" validate:"dive,required"`
	// Bootstrap is a script URL piped to bash as root; empty skips the step
	Bootstrap string `yaml:"bootstrap,omitempty"`
}

// RetrySection configures retries of package-manager commands
type RetrySection struct {
	MaxAttempts       int           `yaml:"max_attempts,omitempty" validate:"gte=0,lte=50"`
	Delay             time.Duration `yaml:"delay" validate:"gte=0"`
	TransientPatterns []string      `yaml:"transient_patterns,omitempty"`
}

// TimeoutsSection holds per-step command timeouts
type TimeoutsSection struct {
	Connect     time.Duration `yaml:"connect,omitempty" validate:"gte=0"`
	Command     time.Duration `yaml:"command,omitempty" validate:"gte=0"`
	Packages    time.Duration `yaml:"packages,omitempty" validate:"gte=0"`
	Bootstrap   time.Duration `yaml:"bootstrap,omitempty" validate:"gte=0"`
	Clone       time.Duration `yaml:"clone,omitempty" validate:"gte=0"`
	Environment time.Duration `yaml:"environment,omitempty" validate:"gte=0"`
	Supervisor  time.Duration `yaml:"supervisor,omitempty" validate:"gte=0"`
}

// DiagnosticsSection configures what is collected after a failure
type DiagnosticsSection struct {
	JournalLines int `yaml:"journal_lines,omitempty" validate:"gte=0,lte=10000"`
	// VerifyAttempts is how many consecutive "active" samples a freshly
	// started service must show; 0 disables the check
	VerifyAttempts int           `yaml:"verify_attempts,omitempty" validate:"gte=0,lte=20"`
	VerifyInterval time.Duration `yaml:"verify_interval,omitempty" validate:"gte=0"`
}

// SessionCredentials identify and authenticate one remote host. They are
// built once per run and never persisted; the secret in particular only
// lives in memory.
type SessionCredentials struct {
	Host            string        `validate:"required,hostname_rfc1123|ip"`
	User            string        `validate:"required"`
	Port            int           `validate:"gte=1,lte=65535"`
	Secret          string
	KeyPath         string
	ConnectTimeout  time.Duration `validate:"gte=0"`
	InsecureHostKey bool
}

// GlobalConfig represents the global ~/.config/pionctl/config.yaml
type GlobalConfig struct {
	Hosts       map[string]HostConfig `yaml:"hosts"`
	DefaultUser string                `yaml:"default_user,omitempty"`
	DefaultPort int                   `yaml:"default_port,omitempty"`
}

// HostConfig represents a registered device. Passwords are never stored.
type HostConfig struct {
	Host            string `yaml:"host"`
	User            string `yaml:"user"`
	Port            int    `yaml:"port,omitempty"`
	KeyPath         string `yaml:"key_path,omitempty"`
	InsecureHostKey bool   `yaml:"insecure_host_key,omitempty"`
}

// DefaultServiceConfig returns the configuration for the Pion drone server
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Service: ServiceSection{
			Name:        constants.DefaultServiceName,
			Description: "Pion Server",
			Restart:     "always",
			RestartSec:  constants.DefaultRestartSec,
			LogMode:     "journal",
		},
		Source: SourceSection{
			Repository: "https://github.com/OnisOris/sPion.git",
			Directory:  "code/sPion",
		},
		Runtime: RuntimeSection{
			Interpreter:  "python3",
			EnvDir:       constants.DefaultEnvDir,
			Requirements: "requirements.txt",
			Command:      "python3 main.py",
		},
		Dependencies: DependenciesSection{
			Packages:  []string{"python3", "python3-pip", "python3-venv", "wget", "curl", "git"},
			Bootstrap: "https://raw.githubusercontent.com/OnisOris/pion/refs/heads/dev/scripts/install_linux.sh",
		},
		Retry: RetrySection{
			MaxAttempts:       constants.DefaultRetryAttempts,
			Delay:             constants.DefaultRetryDelay,
			TransientPatterns: []string{"lock"},
		},
		Timeouts: TimeoutsSection{
			Connect:     constants.DefaultConnectTimeout,
			Command:     constants.DefaultCommandTimeout,
			Packages:    constants.PackagesTimeout,
			Bootstrap:   constants.BootstrapTimeout,
			Clone:       constants.CloneTimeout,
			Environment: constants.EnvironmentTimeout,
			Supervisor:  constants.SupervisorTimeout,
		},
		Diagnostics: DiagnosticsSection{
			JournalLines:   constants.DefaultJournalLines,
			VerifyAttempts: constants.DefaultVerifyAttempts,
			VerifyInterval: constants.DefaultVerifyInterval,
		},
	}
}

// ApplyDefaults fills zero values from DefaultServiceConfig, so a minimal
// pionctl.yaml only needs what differs from the Pion server. Dependencies
// and the requirements manifest are left alone: an empty list there means
// nothing to install. RestartSec and Retry.Delay are not touched either,
// zero is a meaningful value for both.
func (c *ServiceConfig) ApplyDefaults() {
	d := DefaultServiceConfig()

	if c.Service.Name == "" {
		c.Service.Name = d.Service.Name
	}
	if c.Service.Description == "" {
		c.Service.Description = c.Service.Name
	}
	if c.Service.Restart == "" {
		c.Service.Restart = d.Service.Restart
	}
	if c.Service.LogMode == "" {
		c.Service.LogMode = d.Service.LogMode
	}
	if c.Source.Repository == "" {
		c.Source.Repository = d.Source.Repository
	}
	if c.Source.Directory == "" {
		c.Source.Directory = d.Source.Directory
	}
	if c.Runtime.Interpreter == "" {
		c.Runtime.Interpreter = d.Runtime.Interpreter
	}
	if c.Runtime.EnvDir == "" {
		c.Runtime.EnvDir = d.Runtime.EnvDir
	}
	if c.Runtime.Command == "" {
		c.Runtime.Command = d.Runtime.Command
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if len(c.Retry.TransientPatterns) == 0 {
		c.Retry.TransientPatterns = d.Retry.TransientPatterns
	}

	t := &c.Timeouts
	for _, pair := range []struct {
		field *time.Duration
		def   time.Duration
	}{
		{&t.Connect, d.Timeouts.Connect},
		{&t.Command, d.Timeouts.Command},
		{&t.Packages, d.Timeouts.Packages},
		{&t.Bootstrap, d.Timeouts.Bootstrap},
		{&t.Clone, d.Timeouts.Clone},
		{&t.Environment, d.Timeouts.Environment},
		{&t.Supervisor, d.Timeouts.Supervisor},
	} {
		if *pair.field == 0 {
			*pair.field = pair.def
		}
	}

	if c.Diagnostics.JournalLines == 0 {
		c.Diagnostics.JournalLines = d.Diagnostics.JournalLines
	}
	if c.Diagnostics.VerifyInterval == 0 {
		c.Diagnostics.VerifyInterval = d.Diagnostics.VerifyInterval
	}
}

// DefaultGlobalConfig returns a default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Hosts:       make(map[string]HostConfig),
		DefaultUser: "pi",
		DefaultPort: constants.DefaultSSHPort,
	}
}
