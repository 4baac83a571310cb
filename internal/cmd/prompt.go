package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptSecret reads a secret from the terminal without echoing it
func PromptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "? %s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

// PromptConfirm asks a yes/no question; anything but y/yes is a no.
// Non-interactive runs answer yes only with --yes.
func PromptConfirm(message string) bool {
	if IsYesMode() {
		return true
	}
	if !IsInteractive() {
		return false
	}

	fmt.Printf("? %s [y/N]: ", message)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// IsInteractive returns true if stdin is a terminal and --yes flag is not set
func IsInteractive() bool {
	if IsYesMode() {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}
