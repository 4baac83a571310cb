package deploy

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/ssh"
)

// fakeHost answers remote commands the way a Debian device would
type fakeHost struct {
	exists      bool
	lockCount   int
	activeState string
	failOn      map[string]*ssh.ExecResult
	errOn       map[string]error
	aptCalls    int
}

func (f *fakeHost) exec(ctx context.Context, command string) (*ssh.ExecResult, error) {
	for substr, err := range f.errOn {
		if strings.Contains(command, substr) {
			return nil, err
		}
	}
	for substr, result := range f.failOn {
		if strings.Contains(command, substr) {
			return result, nil
		}
	}

	switch {
	case strings.Contains(command, "list-unit-files"):
		if f.exists {
			return &ssh.ExecResult{Stdout: "pion_server.service enabled enabled\n"}, nil
		}
		return &ssh.ExecResult{ExitCode: 1}, nil
	case strings.Contains(command, "is-active"):
		state := f.activeState
		if state == "" {
			state = "active"
		}
		return &ssh.ExecResult{Stdout: state + "\n"}, nil
	case strings.Contains(command, "journalctl"):
		return &ssh.ExecResult{Stdout: "Traceback (most recent call last):\nModuleNotFoundError: No module named 'pion'\n"}, nil
	case strings.Contains(command, "apt-get"):
		f.aptCalls++
		if f.aptCalls <= f.lockCount {
			return &ssh.ExecResult{
				Stderr:   "E: Could not get lock /var/lib/dpkg/lock-frontend. It is held by process 812 (apt-get)\n",
				ExitCode: 100,
			}, nil
		}
	}
	return &ssh.ExecResult{}, nil
}

func (f *fakeHost) mock() *ssh.MockExecutor {
	return &ssh.MockExecutor{ExecFunc: f.exec}
}

// unitHost keeps supervisor state across runs: the unit file content, the
// mask link and the enabled and active flags. Every other command succeeds.
type unitHost struct {
	unit    string
	masked  bool
	enabled bool
	active  bool
	writes  int
}

func (h *unitHost) exec(ctx context.Context, command string) (*ssh.ExecResult, error) {
	missing := &ssh.ExecResult{
		Stderr:   "Failed to enable unit: Unit file pion_server.service does not exist.\n",
		ExitCode: 1,
	}

	switch {
	case strings.Contains(command, "list-unit-files"):
		if h.unit == "" {
			return &ssh.ExecResult{ExitCode: 1}, nil
		}
		return &ssh.ExecResult{Stdout: "pion_server.service enabled enabled\n"}, nil
	case strings.Contains(command, "base64 -d"):
		h.writes++
		// writes go through the /dev/null link while masked
		if !h.masked {
			h.unit = decodeUpload(command)
		}
	case strings.Contains(command, "systemctl unmask"):
		h.masked = false
	case strings.Contains(command, "systemctl enable"):
		if h.unit == "" || h.masked {
			return missing, nil
		}
		h.enabled = true
	case strings.Contains(command, "systemctl start"), strings.Contains(command, "systemctl restart"):
		if h.unit == "" || h.masked {
			return &ssh.ExecResult{Stderr: "Unit pion_server.service not found.\n", ExitCode: 5}, nil
		}
		h.active = true
	case strings.Contains(command, "systemctl stop"):
		h.active = false
	case strings.Contains(command, "systemctl disable"):
		h.enabled = false
	case strings.Contains(command, "rm -f '/etc/systemd/system/"):
		h.unit = ""
	case strings.Contains(command, "is-active"):
		if h.active {
			return &ssh.ExecResult{Stdout: "active\n"}, nil
		}
		return &ssh.ExecResult{Stdout: "inactive\n", ExitCode: 3}, nil
	}
	return &ssh.ExecResult{}, nil
}

func (h *unitHost) mock() *ssh.MockExecutor {
	return &ssh.MockExecutor{ExecFunc: h.exec}
}

// decodeUpload extracts the content of a WriteFileCommand line
func decodeUpload(command string) string {
	const marker = "printf '%s' '"
	start := strings.Index(command, marker)
	if start < 0 {
		return ""
	}
	rest := command[start+len(marker):]
	end := strings.Index(rest, "'")
	if end < 0 {
		return ""
	}
	data, err := base64.StdEncoding.DecodeString(rest[:end])
	if err != nil {
		return ""
	}
	return string(data)
}

// sleepRecorder stands in for the retry delay
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlan(t *testing.T) *Plan {
	t.Helper()
	plan, err := NewPlan(config.DefaultServiceConfig(), "pi")
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	return plan
}

// indexOf returns the index of the first command containing substr, or -1
func indexOf(commands []string, substr string) int {
	for i, c := range commands {
		if strings.Contains(c, substr) {
			return i
		}
	}
	return -1
}

func countOf(commands []string, substr string) int {
	n := 0
	for _, c := range commands {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}
