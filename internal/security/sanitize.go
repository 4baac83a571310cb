package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// serviceNameRegex validates systemd service names (without the .service suffix)
	// Allows: letters, numbers, underscores, dots, hyphens, @ for template instances
	// Length: 1-128 characters
	serviceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]([a-zA-Z0-9_.@-]{0,126}[a-zA-Z0-9_])?$`)

	// hostNameRegex validates host registry names
	// Allows: letters, numbers, underscores, hyphens
	// Length: 1-64 characters
	hostNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,62}[a-zA-Z0-9])?$`)

	// unixUserRegex validates Unix usernames
	// Standard POSIX username rules
	// Length: 1-32 characters
	unixUserRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// packageNameRegex validates Debian package names
	packageNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)

	// interpreterRegex validates an interpreter command name found on PATH
	interpreterRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.+-]*$`)

	// relPathRegex validates relative paths inside the remote home directory
	relPathRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+(/[a-zA-Z0-9_.-]+)*$`)

	// sensitiveLogPatterns are masked by SanitizeCommandForLog
	sensitiveLogPatterns = []string{
		"PASSWORD=",
		"PASSWD=",
		"TOKEN=",
	}
)

// ValidateServiceName validates a systemd service name
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.HasSuffix(name, ".service") {
		return fmt.Errorf("service name must not include the .service suffix")
	}
	if len(name) > 128 {
		return fmt.Errorf("service name too long (max 128 characters)")
	}
	if !serviceNameRegex.MatchString(name) {
		return fmt.Errorf("service name must contain only letters, numbers, underscores, dots, @ and hyphens")
	}
	return nil
}

// ValidateHostName validates a host registry name
func ValidateHostName(name string) error {
	if name == "" {
		return fmt.Errorf("host name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("host name too long (max 64 characters)")
	}
	if !hostNameRegex.MatchString(name) {
		return fmt.Errorf("host name must contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateUnixUser validates a Unix username
func ValidateUnixUser(user string) error {
	if user == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(user) > 32 {
		return fmt.Errorf("username too long (max 32 characters)")
	}
	if !unixUserRegex.MatchString(user) {
		return fmt.Errorf("username must start with a lowercase letter or underscore, followed by lowercase letters, numbers, underscores, or hyphens")
	}
	return nil
}

// ValidatePackageName validates a package name passed to the package manager
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("invalid package name: %s", name)
	}
	return nil
}

// ValidateInterpreter validates the interpreter that creates the runtime
// environment: a command name such as python3.11, or an absolute path such
// as /usr/bin/python3.
func ValidateInterpreter(name string) error {
	if name == "" {
		return fmt.Errorf("interpreter cannot be empty")
	}
	if strings.HasPrefix(name, "/") {
		if err := ValidateRemotePath(name); err != nil {
			return fmt.Errorf("invalid interpreter path: %w", err)
		}
		return nil
	}
	if !interpreterRegex.MatchString(name) {
		return fmt.Errorf("invalid interpreter: %s (use a command name or an absolute path)", name)
	}
	return nil
}

// ValidateRemotePath validates a path on the remote host.
// Absolute paths are accepted as-is; relative paths are resolved against the
// remote user's home directory and must not traverse upwards.
func ValidateRemotePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path cannot contain path traversal (..): %s", path)
	}
	rel := strings.TrimPrefix(path, "/")
	if !relPathRegex.MatchString(rel) {
		return fmt.Errorf("path contains invalid characters: %s", path)
	}
	return nil
}

// ValidateFetchURL validates a URL fetched on the remote host (repository or bootstrap script)
func ValidateFetchURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "ssh" && u.Scheme != "git" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %s", raw)
	}
	return nil
}

// ShellEscape escapes a string for safe use in shell commands by wrapping it
// in single quotes and escaping any internal single quotes using the POSIX
// pattern: ' → '\''
func ShellEscape(s string) string {
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// RedactSecret replaces every occurrence of secret in s with a mask.
// Short secrets are still masked: a one-character password is a password.
func RedactSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "****")
}

// SanitizeCommandForLog masks sensitive values in commands before logging.
// Any extra secrets given are redacted verbatim.
func SanitizeCommandForLog(cmd string, secrets ...string) string {
	result := cmd

	for _, secret := range secrets {
		result = RedactSecret(result, secret)
	}

	for _, pattern := range sensitiveLogPatterns {
		searchFrom := 0
		for {
			idx := strings.Index(result[searchFrom:], pattern)
			if idx == -1 {
				break
			}
			valueStart := searchFrom + idx + len(pattern)
			valueEnd := findValueEnd(result, valueStart)
			masked := "****"
			result = result[:valueStart] + masked + result[valueEnd:]
			searchFrom = valueStart + len(masked)
		}
	}

	return result
}

// findValueEnd finds where a shell value ends (handles quoted and unquoted values)
func findValueEnd(s string, start int) int {
	if start >= len(s) {
		return start
	}

	if s[start] == '\'' {
		end := strings.Index(s[start+1:], "'")
		if end == -1 {
			return len(s)
		}
		return start + end + 2
	}

	if s[start] == '"' {
		end := strings.Index(s[start+1:], "\"")
		if end == -1 {
			return len(s)
		}
		return start + end + 2
	}

	for i := start; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' {
			return i
		}
	}
	return len(s)
}
