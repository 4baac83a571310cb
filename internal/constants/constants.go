package constants

import (
	"path"
	"time"
)

// Remote paths recognised by the process supervisor
const (
	SystemdUnitDir = "/etc/systemd/system"
	UnitSuffix     = ".service"
)

// Connection defaults
const (
	DefaultSSHPort        = 22
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 15 * time.Second
)

// Step timeouts. Package installation and environment resolution are slow on
// single-board computers, hence the generous values.
const (
	PackagesTimeout    = 300 * time.Second
	BootstrapTimeout   = 300 * time.Second
	CloneTimeout       = 60 * time.Second
	EnvironmentTimeout = 600 * time.Second
	SupervisorTimeout  = 20 * time.Second
	DiagnosticsTimeout = 10 * time.Second
)

// Retry defaults for lock contention on the package manager
const (
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = 5 * time.Second
)

// Service defaults
const (
	DefaultServiceName  = "pion_server"
	DefaultRestartSec   = 10 * time.Second
	DefaultJournalLines = 20
	DefaultEnvDir       = ".venv"
)

// Post-start verification defaults
const (
	DefaultVerifyAttempts = 3
	DefaultVerifyInterval = 2 * time.Second
)

// UnitFileName returns the unit file name for a service.
func UnitFileName(service string) string {
	return service + UnitSuffix
}

// UnitPath returns the path of the unit file for a service.
func UnitPath(service string) string {
	return path.Join(SystemdUnitDir, UnitFileName(service))
}

// HomeDir returns the home directory of a remote user.
func HomeDir(user string) string {
	if user == "root" {
		return "/root"
	}
	return path.Join("/home", user)
}

// RemotePath resolves p against the remote user's home directory unless it
// is already absolute.
func RemotePath(user, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(HomeDir(user), p)
}

// Environment overrides for unattended runs
const (
	EnvPassword         = "PIONCTL_PASSWORD"
	EnvSSHKey           = "PIONCTL_SSH_KEY"
	EnvKnownHosts       = "PIONCTL_KNOWN_HOSTS"
	EnvSkipHostKeyCheck = "PIONCTL_SKIP_HOST_KEY_CHECK"
	EnvHost             = "PIONCTL_HOST"
)
