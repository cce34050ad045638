package device

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/sotboard/pkg/util"
)

// Commands run on every device, in order. Each runs in its own exec
// session, where IOS does not page output.
const (
	cmdRunningConfig = "show running-config"
	cmdShowVersion   = "show version"
	cmdShowHosts     = "show hosts"
)

// Session is an SSH connection to one device.
type Session struct {
	host   string
	client *ssh.Client
}

// Dial opens an SSH connection to host:port with password authentication.
func Dial(ctx context.Context, host string, port int, profile Profile, timeout time.Duration) (*Session, error) {
	config := &ssh.ClientConfig{
		User: profile.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(profile.Password),
		},
		// Onboarding targets are not yet known hosts.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	util.WithDevice(host).Warnf("SSH to %s: host key verification disabled (InsecureIgnoreHostKey)", addr)
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake %s: %w", addr, err)
	}
	return &Session{host: host, client: ssh.NewClient(c, chans, reqs)}, nil
}

// ExecCommand runs a command on the device and returns the combined output.
// A new SSH session is opened per call.
func (s *Session) ExecCommand(cmd string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(cmd)
	if err != nil {
		return string(output), fmt.Errorf("SSH exec '%s': %w", cmd, err)
	}
	return string(output), nil
}

// Close closes the SSH connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// SSHProvider fetches configuration and facts over SSH.
type SSHProvider struct {
	Timeout time.Duration
}

// NewSSHProvider returns an SSHProvider with a 30 second connect timeout.
func NewSSHProvider() *SSHProvider {
	return &SSHProvider{Timeout: 30 * time.Second}
}

// Fetch logs in to the device and collects the running-config, "show
// version" and "show hosts".
func (p *SSHProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.IP == "" {
		return nil, fmt.Errorf("no address to connect to: %w", util.ErrInvalidConfig)
	}
	log := util.WithDevice(req.IP)

	sess, err := Dial(ctx, req.IP, req.port(), req.Profile, p.Timeout)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	outputs := make(map[string]string, 3)
	for _, cmd := range []string{cmdRunningConfig, cmdShowVersion, cmdShowHosts} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := sess.ExecCommand(cmd)
		if err != nil {
			if cmd == cmdShowHosts {
				log.Warnf("%s failed, fqdn falls back to hostname: %v", cmd, err)
				continue
			}
			return nil, err
		}
		outputs[cmd] = out
	}

	res := &Result{
		Config: outputs[cmdRunningConfig],
		Facts:  ParseShowVersion(outputs[cmdShowVersion], outputs[cmdShowHosts]),
	}
	log.Debugf("fetched %d bytes of config, facts %v", len(res.Config), res.Facts.Map())
	return res, nil
}
