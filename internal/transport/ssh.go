package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"labprov/internal/domain"
)

// SSHConfig holds configuration for the SSH transport
type SSHConfig struct {
	Port           int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// SSH drives the device CLI over an SSH session
type SSH struct {
	port           int
	connectTimeout time.Duration
	commandTimeout time.Duration
	log            zerolog.Logger
}

var _ Transport = (*SSH)(nil)

// cliErrorPrefixes mark EOS CLI rejections in otherwise successful output
var cliErrorPrefixes = []string{
	"% Invalid input",
	"% Incomplete command",
	"% Ambiguous command",
	"% Unavailable command",
}

// NewSSH creates an SSH transport
func NewSSH(cfg SSHConfig, log zerolog.Logger) *SSH {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	return &SSH{
		port:           cfg.Port,
		connectTimeout: cfg.ConnectTimeout,
		commandTimeout: cfg.CommandTimeout,
		log:            log,
	}
}

// Name returns the transport identifier
func (s *SSH) Name() string {
	return "ssh"
}

// Open establishes an SSH client; each Execute uses its own channel
func (s *SSH) Open(ctx context.Context, address string, creds domain.Credentials) (Session, error) {
	client, err := s.connect(ctx, address, creds)
	if err != nil {
		return nil, err
	}
	return &sshSession{client: client, timeout: s.commandTimeout}, nil
}

// Run pipes the command batch into one interactive shell and returns the combined output
func (s *SSH) Run(ctx context.Context, dev domain.Device, commands []string) (Result, error) {
	client, err := s.connect(ctx, dev.ManagementAddress, dev.Credentials)
	if err != nil {
		return Result{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	session.Stdin = strings.NewReader(strings.Join(commands, "\n") + "\nexit\n")

	if err := session.Shell(); err != nil {
		return Result{}, fmt.Errorf("failed to start shell: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	select {
	case err := <-done:
		body := out.String()
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return Result{Status: exitErr.ExitStatus(), Body: body}, &StatusError{Status: exitErr.ExitStatus(), Body: body}
		}
		if err != nil {
			return Result{Body: body}, fmt.Errorf("session failed: %w", err)
		}
		if line := cliError(body); line != "" {
			return Result{Status: 1, Body: body}, &StatusError{Status: 1, Body: line}
		}
		return Result{Status: 0, Body: body}, nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		// out is only safe to read once the copy goroutines have stopped
		client.Close()
		<-done
		return Result{Body: out.String()}, fmt.Errorf("command batch: %w", ctx.Err())
	}
}

// connect establishes an SSH connection with password auth
func (s *SSH) connect(ctx context.Context, host string, creds domain.Credentials) (*ssh.Client, error) {
	if creds.Username == "" {
		return nil, fmt.Errorf("username required for %s", host)
	}

	config := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		// lab devices regenerate host keys on every deploy
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.connectTimeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(s.port))

	dialer := &net.Dialer{
		Timeout: s.connectTimeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// NewClientConn ignores config.Timeout and ctx; bound the handshake here
	if err := conn.SetDeadline(time.Now().Add(s.connectTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set handshake deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() {
		if err == nil {
			sshConn.Close()
		}
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to clear handshake deadline: %w", err)
	}

	s.log.Debug().Str("address", host).Msg("SSH connected")
	return ssh.NewClient(sshConn, chans, reqs), nil
}

type sshSession struct {
	client  *ssh.Client
	timeout time.Duration
}

// Execute runs one command on a fresh channel
func (s *sshSession) Execute(ctx context.Context, command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type outcome struct {
		output []byte
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		output, err := session.CombinedOutput(command)
		done <- outcome{output, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case res := <-done:
		if res.err != nil {
			// non-zero exit still carries usable output
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				return string(res.output), nil
			}
			return "", fmt.Errorf("command %q failed: %w", command, res.err)
		}
		return string(res.output), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command %q: %w", command, ctx.Err())
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// cliError returns the first CLI rejection line in output
func cliError(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range cliErrorPrefixes {
			if strings.HasPrefix(line, prefix) {
				return line
			}
		}
	}
	return ""
}
