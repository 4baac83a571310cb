package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/OnisOris/pionctl/internal/constants"
)

// Client represents an SSH client connection. It owns at most one live
// connection; every command runs on its own channel.
type Client struct {
	Host    string
	User    string
	Port    int
	KeyPath string
	opts    clientOptions
	client  *ssh.Client
}

// NewClient creates a new SSH client
func NewClient(host, user string, port int, keyPath string, opts ...ClientOption) *Client {
	if port == 0 {
		port = 22
	}
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Host:    host,
		User:    user,
		Port:    port,
		KeyPath: keyPath,
		opts:    o,
	}
}

// Addr returns the host:port address of the server
func (c *Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Connect establishes an SSH connection
func (c *Client) Connect() error {
	addr := c.Addr()
	if c.client != nil {
		return &ConnectionError{Addr: addr, Err: errors.New("already connected")}
	}

	auth, err := c.authMethods()
	if err != nil {
		return &ConnectionError{Addr: addr, Err: err}
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return &ConnectionError{Addr: addr, Err: fmt.Errorf("host key verification failed: %w", err)}
	}

	config := &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.opts.timeout,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return &ConnectionError{Addr: addr, Err: err}
	}

	c.client = client
	return nil
}

// Close closes the SSH connection. It is safe to call more than once; only
// the first call on a connected client does anything.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client != nil
}

// NewSession creates a new SSH session
func (c *Client) NewSession() (*ssh.Session, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	return c.client.NewSession()
}

func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	signer, err := c.loadPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	if signer != nil {
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.opts.password != "" {
		password := c.opts.password
		methods = append(methods,
			ssh.Password(password),
			// Many embedded images only enable keyboard-interactive logins.
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication method available (provide a password or a private key)")
	}
	return methods, nil
}

// loadPrivateKey loads the SSH private key if one is configured.
// A nil signer with a nil error means password-only authentication.
func (c *Client) loadPrivateKey() (ssh.Signer, error) {
	// CI/CD: Check for SSH key in environment variable first
	if envKey := os.Getenv(constants.EnvSSHKey); envKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(envKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse PIONCTL_SSH_KEY: %w", err)
		}
		return signer, nil
	}

	if c.KeyPath == "" {
		return nil, nil
	}

	keyPath := c.KeyPath
	if len(keyPath) >= 2 && keyPath[:2] == "~/" {
		homeDir, _ := os.UserHomeDir()
		keyPath = filepath.Join(homeDir, keyPath[2:])
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return signer, nil
}

// hostKeyCallback returns the host key callback function
// SECURITY: This function requires a valid known_hosts file by default
// In CI/CD, set PIONCTL_KNOWN_HOSTS with the content of known_hosts
// or PIONCTL_SKIP_HOST_KEY_CHECK=true to skip verification (not recommended)
func (c *Client) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.opts.hostKeyCallback != nil {
		return c.opts.hostKeyCallback, nil
	}

	if c.opts.insecureHostKey || os.Getenv(constants.EnvSkipHostKeyCheck) == "true" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if knownHostsContent := os.Getenv(constants.EnvKnownHosts); knownHostsContent != "" {
		tmpFile, err := os.CreateTemp("", "known_hosts")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp known_hosts: %w", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.WriteString(knownHostsContent); err != nil {
			tmpFile.Close()
			return nil, fmt.Errorf("failed to write temp known_hosts: %w", err)
		}
		tmpFile.Close()

		callback, err := knownhosts.New(tmpFile.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse PIONCTL_KNOWN_HOSTS: %w", err)
		}
		return callback, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	knownHostsPath := filepath.Join(homeDir, ".ssh", "known_hosts")

	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("SSH known_hosts file not found at %s. "+
			"Please connect to the device manually first with: ssh %s@%s -p %d\n"+
			"or pass --insecure-host-key for freshly flashed devices",
			knownHostsPath, c.User, c.Host, c.Port)
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	return callback, nil
}
