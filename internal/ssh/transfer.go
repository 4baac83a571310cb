package ssh

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/OnisOris/pionctl/internal/security"
)

// WriteFileCommand renders a shell command that writes content to remotePath
// with the given mode, creating the parent directory if needed.
// SECURITY: Uses base64 encoding to prevent heredoc injection attacks
func WriteFileCommand(remotePath, content string, mode os.FileMode) string {
	base64Content := base64.StdEncoding.EncodeToString([]byte(content))
	target := security.ShellEscape(remotePath)

	return fmt.Sprintf("mkdir -p %s && printf '%%s' '%s' | base64 -d > %s && chmod %04o %s",
		security.ShellEscape(path.Dir(remotePath)), base64Content, target, mode.Perm(), target)
}

// FileExists checks if a file exists on the remote server
func FileExists(ctx context.Context, e Executor, remotePath string) (bool, error) {
	result, err := e.Exec(ctx, fmt.Sprintf("test -f %s && echo 'exists'", security.ShellEscape(remotePath)), 0)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Stdout) == "exists", nil
}

// DirectoryExists checks if a directory exists on the remote server
func DirectoryExists(ctx context.Context, e Executor, remotePath string) (bool, error) {
	result, err := e.Exec(ctx, fmt.Sprintf("test -d %s && echo 'exists'", security.ShellEscape(remotePath)), 0)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Stdout) == "exists", nil
}
