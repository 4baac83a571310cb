package ssh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyInfo contains information about an SSH private key
type KeyInfo struct {
	Path        string // Full path to the key file
	Name        string // Key filename (e.g., "id_ed25519")
	Type        string // Public key algorithm (e.g., "ssh-ed25519"), empty when encrypted
	IsEncrypted bool   // True if key is passphrase-protected
}

// InspectKey reads a private key file and reports what it holds.
// Passphrase-protected keys are reported rather than rejected, since the
// caller decides whether it can prompt for the passphrase.
func InspectKey(path string) (*KeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	info := &KeyInfo{
		Path: path,
		Name: filepath.Base(path),
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			info.IsEncrypted = true
			if missing.PublicKey != nil {
				info.Type = missing.PublicKey.Type()
			}
			return info, nil
		}
		return nil, fmt.Errorf("invalid SSH key: %w", err)
	}

	info.Type = signer.PublicKey().Type()
	return info, nil
}
