package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// handlerFunc answers one exec request on the test server
type handlerFunc func(command string, stdin []byte) (stdout, stderr string, status uint32)

// testServer is an in-process SSH server accepting a single password
type testServer struct {
	host    string
	port    int
	hostKey ssh.PublicKey

	mu       sync.Mutex
	commands []string
}

func startTestServer(t *testing.T, password string, handler handlerFunc) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("failed to create host signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	host, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := &testServer{host: host, port: port, hostKey: signer.PublicKey()}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go s.serveConn(conn, config, handler)
		}
	}()

	return s
}

func (s *testServer) serveConn(conn net.Conn, config *ssh.ServerConfig, handler handlerFunc) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, chReqs, handler)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, reqs <-chan *ssh.Request, handler handlerFunc) {
	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		go func(command string) {
			stdin, _ := io.ReadAll(ch)
			stdout, stderr, status := handler(command, stdin)
			_, _ = io.WriteString(ch, stdout)
			_, _ = io.WriteString(ch.Stderr(), stderr)
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			ch.Close()
		}(payload.Command)
	}
}

func (s *testServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// client returns a password-authenticated client pinned to the server's host key
func (s *testServer) client(password string, opts ...ClientOption) *Client {
	opts = append([]ClientOption{
		WithPassword(password),
		WithHostKeyCallback(ssh.FixedHostKey(s.hostKey)),
	}, opts...)
	return NewClient(s.host, "pi", s.port, "", opts...)
}
