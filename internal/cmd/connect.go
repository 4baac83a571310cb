package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OnisOris/pionctl/internal/config"
	"github.com/OnisOris/pionctl/internal/constants"
	"github.com/OnisOris/pionctl/internal/ssh"
)

// connectionFlags are shared by every command that talks to a device
type connectionFlags struct {
	host            string
	user            string
	port            int
	password        string
	keyPath         string
	insecureHostKey bool
	connectTimeout  time.Duration
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "Device address (IP or hostname)")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "Login user (default: registry or pi)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "SSH port (default: 22)")
	cmd.Flags().StringVar(&f.password, "password", "", "Login and sudo password (prefer PIONCTL_PASSWORD)")
	cmd.Flags().StringVarP(&f.keyPath, "key", "k", "", "SSH private key path")
	cmd.Flags().BoolVar(&f.insecureHostKey, "insecure-host-key", false, "Skip host key verification (freshly flashed devices)")
	cmd.Flags().DurationVar(&f.connectTimeout, "connect-timeout", 0, "SSH connection timeout (default: 10s)")
}

// resolveCredentials builds the credentials of one run. A registered host
// name (argument or PIONCTL_HOST) supplies defaults that flags override.
// The secret comes from --password, then PIONCTL_PASSWORD, then a prompt.
func resolveCredentials(f *connectionFlags, args []string) (*config.SessionCredentials, error) {
	creds := &config.SessionCredentials{
		ConnectTimeout: f.connectTimeout,
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	} else if f.host == "" {
		name = os.Getenv(constants.EnvHost)
	}

	if name != "" {
		globalCfg, err := config.LoadGlobalConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load global config: %w", err)
		}
		hostCfg, err := globalCfg.GetHost(name)
		if err != nil {
			return nil, err
		}
		creds.Host = hostCfg.Host
		creds.User = hostCfg.User
		creds.Port = hostCfg.Port
		creds.KeyPath = hostCfg.KeyPath
		creds.InsecureHostKey = hostCfg.InsecureHostKey
	}

	if f.host != "" {
		creds.Host = f.host
	}
	if f.user != "" {
		creds.User = f.user
	}
	if f.port != 0 {
		creds.Port = f.port
	}
	if f.keyPath != "" {
		creds.KeyPath = f.keyPath
	}
	if f.insecureHostKey {
		creds.InsecureHostKey = true
	}

	if creds.Host == "" {
		return nil, fmt.Errorf("no device given: pass --host or a registered host name")
	}
	if creds.User == "" {
		creds.User = config.DefaultGlobalConfig().DefaultUser
	}
	if creds.Port == 0 {
		creds.Port = constants.DefaultSSHPort
	}

	creds.Secret = f.password
	if creds.Secret == "" {
		creds.Secret = os.Getenv(constants.EnvPassword)
	}
	if creds.Secret == "" && IsInteractive() {
		secret, err := PromptSecret(fmt.Sprintf("Password for %s@%s", creds.User, creds.Host))
		if err != nil {
			return nil, err
		}
		creds.Secret = secret
	}

	if errs := config.ValidateCredentials(creds); errs.HasErrors() {
		return nil, fmt.Errorf("invalid connection settings: %w", errs)
	}
	return creds, nil
}

// newClient creates an unconnected client for creds; the orchestrators
// own Connect and Close
func newClient(creds *config.SessionCredentials, timeouts config.TimeoutsSection) *ssh.Client {
	opts := []ssh.ClientOption{
		ssh.WithPassword(creds.Secret),
		ssh.WithInsecureHostKey(creds.InsecureHostKey),
	}
	if timeout := firstPositive(creds.ConnectTimeout, timeouts.Connect); timeout > 0 {
		opts = append(opts, ssh.WithTimeout(timeout))
	}
	if timeouts.Command > 0 {
		opts = append(opts, ssh.WithCommandTimeout(timeouts.Command))
	}
	return ssh.NewClient(creds.Host, creds.User, creds.Port, creds.KeyPath, opts...)
}

func firstPositive(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}

// parseHostSpec splits user@host; the user part is optional
func parseHostSpec(spec string) (user, host string, err error) {
	if spec == "" {
		return "", "", fmt.Errorf("empty host")
	}
	if i := strings.LastIndex(spec, "@"); i >= 0 {
		user, host = spec[:i], spec[i+1:]
		if user == "" || host == "" {
			return "", "", fmt.Errorf("invalid host format %q, use user@host", spec)
		}
		return user, host, nil
	}
	return "", spec, nil
}
