// Package transport opens command sessions to lab routers.
//
// Two strategies share one interface: an interactive SSH session and the
// Arista eAPI JSON-RPC endpoint. Discovery uses Dialer/Session for show
// commands; deployment uses Runner to submit a whole command batch.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"labprov/internal/config"
	"labprov/internal/domain"
)

// Session is an open command channel to one device
type Session interface {
	// Execute runs a single show command and returns its raw text output
	Execute(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens sessions
type Dialer interface {
	Open(ctx context.Context, address string, creds domain.Credentials) (Session, error)
}

// Result is the outcome of a submitted command batch
type Result struct {
	Status int
	Body   string
}

// Runner submits a command batch to a device in one request
type Runner interface {
	Run(ctx context.Context, dev domain.Device, commands []string) (Result, error)
}

// Transport is both a Dialer and a Runner
type Transport interface {
	Dialer
	Runner
	Name() string
}

// StatusError is returned when the device answered but rejected the request
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device returned status %d: %s", e.Status, truncate(e.Body, 512))
}

// Timeouts bounds connection setup and each request
type Timeouts struct {
	Connect time.Duration
	Command time.Duration
}

// New builds the transport selected by cfg.Kind
func New(cfg config.TransportConfig, timeouts Timeouts, log zerolog.Logger) (Transport, error) {
	switch cfg.Kind {
	case config.TransportEAPI, "":
		return NewEAPI(EAPIConfig{
			Port:      cfg.EAPIPort,
			Path:      cfg.EAPIPath,
			VerifyTLS: cfg.VerifyTLS,
			Timeout:   timeouts.Command,
		}, log), nil
	case config.TransportSSH:
		return NewSSH(SSHConfig{
			Port:           cfg.SSHPort,
			ConnectTimeout: timeouts.Connect,
			CommandTimeout: timeouts.Command,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
