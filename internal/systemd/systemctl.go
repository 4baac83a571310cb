package systemd

import (
	"fmt"
	"strconv"

	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/security"
	"github.com/OnisOris/pionctl/internal/ssh"
)

// unit returns the escaped unit name for use on a command line
func unit(name string) string {
	return security.ShellEscape(constants.UnitFileName(name))
}

func systemctl(action, name string) ssh.Command {
	return ssh.Command{
		Line:     fmt.Sprintf("systemctl %s %s", action, unit(name)),
		Elevated: true,
		Timeout:  constants.SupervisorTimeout,
	}
}

// DaemonReload makes the supervisor re-read unit files
func DaemonReload() ssh.Command {
	return ssh.Command{
		Line:     "systemctl daemon-reload",
		Elevated: true,
		Timeout:  constants.SupervisorTimeout,
	}
}

// Enable registers the unit to start at boot
func Enable(name string) ssh.Command { return systemctl("enable", name) }

// Disable removes the unit from the boot targets
func Disable(name string) ssh.Command { return systemctl("disable", name) }

// Start starts the unit now
func Start(name string) ssh.Command { return systemctl("start", name) }

// Stop stops the running unit
func Stop(name string) ssh.Command { return systemctl("stop", name) }

// Restart stops and starts the unit, starting it if it was not running
func Restart(name string) ssh.Command { return systemctl("restart", name) }

// Unmask removes the /dev/null link that masks the unit
func Unmask(name string) ssh.Command { return systemctl("unmask", name) }

// IsActive queries the unit's runtime state without privileges
func IsActive(name string) ssh.Command {
	return ssh.Command{
		Line:    "systemctl is-active " + unit(name),
		Timeout: constants.SupervisorTimeout,
	}
}

// IsEnabled queries whether the unit starts at boot
func IsEnabled(name string) ssh.Command {
	return ssh.Command{
		Line:    "systemctl is-enabled " + unit(name),
		Timeout: constants.SupervisorTimeout,
	}
}

// ListUnitFiles lists the unit file registration for name
func ListUnitFiles(name string) ssh.Command {
	return ssh.Command{
		Line:    "systemctl list-unit-files --no-pager --no-legend " + unit(name),
		Timeout: constants.SupervisorTimeout,
	}
}

// WriteUnit uploads content to the unit path with mode 0644
func WriteUnit(name, content string) ssh.Command {
	return ssh.Command{
		Line:     ssh.WriteFileCommand(constants.UnitPath(name), content, 0644),
		Elevated: true,
		Timeout:  constants.SupervisorTimeout,
	}
}

// RemoveUnit deletes the unit file; a missing file is not an error
func RemoveUnit(name string) ssh.Command {
	return ssh.Command{
		Line:     "rm -f " + security.ShellEscape(constants.UnitPath(name)),
		Elevated: true,
		Timeout:  constants.SupervisorTimeout,
	}
}

// Journal reads the last lines of the service's journal
func Journal(name string, lines int) ssh.Command {
	return ssh.Command{
		Line:     fmt.Sprintf("journalctl -u %s -n %d --no-pager", unit(name), lines),
		Elevated: true,
		Timeout:  constants.DiagnosticsTimeout,
	}
}

// FollowJournal is the streaming variant of Journal, for ExecStream
func FollowJournal(name string, lines int) string {
	return fmt.Sprintf("journalctl -u %s -n %d -f --no-pager", unit(name), lines)
}

// TailFile reads the last lines of a log file on the remote host
func TailFile(file string, lines int) ssh.Command {
	return ssh.Command{
		Line:     "tail -n " + strconv.Itoa(lines) + " " + security.ShellEscape(file),
		Elevated: true,
		Timeout:  constants.DiagnosticsTimeout,
	}
}
