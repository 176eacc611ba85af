package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"labprov/internal/domain"
)

// EAPIConfig holds configuration for the eAPI transport
type EAPIConfig struct {
	Port      int
	Path      string
	VerifyTLS bool
	Timeout   time.Duration
}

// EAPI talks to the Arista JSON-RPC command API over HTTPS
type EAPI struct {
	client  *http.Client
	port    int
	path    string
	timeout time.Duration
	log     zerolog.Logger
}

var _ Transport = (*EAPI)(nil)

type eapiParams struct {
	Format        string   `json:"format"`
	Timestamps    bool     `json:"timestamps"`
	AutoComplete  bool     `json:"autoComplete"`
	ExpandAliases bool     `json:"expandAliases"`
	Cmds          []string `json:"cmds"`
	Version       int      `json:"version"`
}

type eapiRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	Method  string     `json:"method"`
	Params  eapiParams `json:"params"`
	ID      string     `json:"id"`
}

type eapiError struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    []json.RawMessage `json:"data,omitempty"`
}

type eapiResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Result  []json.RawMessage `json:"result"`
	Error   *eapiError        `json:"error,omitempty"`
}

// NewEAPI creates an eAPI transport
func NewEAPI(cfg EAPIConfig, log zerolog.Logger) *EAPI {
	if cfg.Port == 0 {
		cfg.Port = 443
	}
	if cfg.Path == "" {
		cfg.Path = "/command-api"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &EAPI{
		client: &http.Client{
			Transport: &http.Transport{
				// lab devices use self-signed certificates
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
			},
		},
		port:    cfg.Port,
		path:    cfg.Path,
		timeout: cfg.Timeout,
		log:     log,
	}
}

// Name returns the transport identifier
func (e *EAPI) Name() string {
	return "eapi"
}

// Open returns a session bound to address; eAPI is stateless so nothing is dialed
func (e *EAPI) Open(ctx context.Context, address string, creds domain.Credentials) (Session, error) {
	if address == "" {
		return nil, fmt.Errorf("management address required")
	}
	return &eapiSession{api: e, address: address, creds: creds}, nil
}

// Run submits the commands as one runCmds request with JSON output.
// Any 2xx response is accepted; a JSON-RPC error in the body is logged.
func (e *EAPI) Run(ctx context.Context, dev domain.Device, commands []string) (Result, error) {
	status, body, err := e.post(ctx, dev.ManagementAddress, dev.Credentials, "json", commands)
	if err != nil {
		return Result{}, err
	}

	res := Result{Status: status, Body: string(body)}
	if status < 200 || status > 299 {
		return res, &StatusError{Status: status, Body: string(body)}
	}

	var resp eapiResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil {
		e.log.Warn().
			Str("address", dev.ManagementAddress).
			Int("code", resp.Error.Code).
			Str("message", resp.Error.Message).
			Msg("eAPI accepted request but reported a command error")
	}

	return res, nil
}

func (e *EAPI) endpoint(address string) string {
	return "https://" + net.JoinHostPort(address, strconv.Itoa(e.port)) + e.path
}

func (e *EAPI) post(ctx context.Context, address string, creds domain.Credentials, format string, commands []string) (int, []byte, error) {
	payload, err := json.Marshal(eapiRequest{
		JSONRPC: "2.0",
		Method:  "runCmds",
		Params: eapiParams{
			Format:  format,
			Cmds:    commands,
			Version: 1,
		},
		ID: "1",
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(address), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("eapi request to %s: %w", address, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response from %s: %w", address, err)
	}

	return resp.StatusCode, body, nil
}

type eapiSession struct {
	api     *EAPI
	address string
	creds   domain.Credentials
}

// Execute runs one command with text output and returns result[0].output
func (s *eapiSession) Execute(ctx context.Context, command string) (string, error) {
	status, body, err := s.api.post(ctx, s.address, s.creds, "text", []string{command})
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", &StatusError{Status: status, Body: string(body)}
	}

	var resp eapiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode eapi response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("command %q rejected: %s (code %d)", command, resp.Error.Message, resp.Error.Code)
	}
	if len(resp.Result) == 0 {
		return "", fmt.Errorf("command %q: empty result", command)
	}

	var text struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(resp.Result[0], &text); err != nil {
		return "", fmt.Errorf("command %q: unexpected result: %w", command, err)
	}
	return text.Output, nil
}

func (s *eapiSession) Close() error {
	return nil
}
