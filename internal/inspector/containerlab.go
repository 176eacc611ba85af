package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CommandRunner executes an external command and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// containerInfo is one entry of `containerlab inspect --format json`
type containerInfo struct {
	LabName     string `json:"lab_name"`
	Name        string `json:"name"`
	ContainerID string `json:"container_id"`
	Image       string `json:"image"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	IPv4        string `json:"ipv4_address"`
	IPv6        string `json:"ipv6_address"`
}

// Containerlab inspects a containerlab topology
type Containerlab struct {
	topology string
	binary   string
	sudo     bool
	kinds    []string
	timeout  time.Duration
	run      CommandRunner
	log      zerolog.Logger
}

// ContainerlabOption configures a Containerlab inspector
type ContainerlabOption func(*Containerlab)

// WithSudo prefixes the inspect command with `sudo -n`
func WithSudo(enabled bool) ContainerlabOption {
	return func(c *Containerlab) {
		c.sudo = enabled
	}
}

// WithBinary overrides the containerlab executable
func WithBinary(path string) ContainerlabOption {
	return func(c *Containerlab) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithKinds restricts results to the given node kinds
func WithKinds(kinds ...string) ContainerlabOption {
	return func(c *Containerlab) {
		if len(kinds) > 0 {
			c.kinds = kinds
		}
	}
}

// WithInspectTimeout bounds the inspect command
func WithInspectTimeout(d time.Duration) ContainerlabOption {
	return func(c *Containerlab) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRunner replaces the command runner
func WithRunner(run CommandRunner) ContainerlabOption {
	return func(c *Containerlab) {
		c.run = run
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) ContainerlabOption {
	return func(c *Containerlab) {
		c.log = log
	}
}

// NewContainerlab creates an inspector for the topology file at topology
func NewContainerlab(topology string, opts ...ContainerlabOption) *Containerlab {
	c := &Containerlab{
		topology: topology,
		binary:   "containerlab",
		kinds:    []string{"ceos"},
		timeout:  30 * time.Second,
		run:      ExecRunner,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the inspector identifier
func (c *Containerlab) Name() string {
	return "containerlab"
}

// Running runs containerlab inspect and returns the matching nodes
func (c *Containerlab) Running(ctx context.Context) ([]Node, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{c.binary, "inspect", "-t", c.topology, "--format", "json"}
	if c.sudo {
		args = append([]string{"sudo", "-n"}, args...)
	}

	c.log.Debug().Strs("argv", args).Msg("Inspecting topology")

	out, err := c.run(ctx, args[0], args[1:]...)
	if err != nil {
		return nil, fmt.Errorf("containerlab inspect %s: %w", c.topology, err)
	}

	nodes, err := c.parse(out)
	if err != nil {
		return nil, fmt.Errorf("containerlab inspect %s: %w", c.topology, err)
	}

	c.log.Info().Int("nodes", len(nodes)).Str("topology", c.topology).Msg("Topology inspected")
	return nodes, nil
}

func (c *Containerlab) parse(data []byte) ([]Node, error) {
	var result map[string][]containerInfo
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}

	var nodes []Node
	for lab, containers := range result {
		for _, ci := range containers {
			if !c.wantKind(ci.Kind) {
				continue
			}
			addr := stripPrefix(ci.IPv4)
			if addr == "" || addr == "N/A" {
				c.log.Warn().Str("lab", lab).Str("node", ci.Name).Msg("Node has no IPv4 management address, skipping")
				continue
			}
			nodes = append(nodes, Node{
				Name:              ci.Name,
				Kind:              ci.Kind,
				ManagementAddress: addr,
			})
		}
	}

	sortNodes(nodes)
	return nodes, nil
}

func (c *Containerlab) wantKind(kind string) bool {
	for _, k := range c.kinds {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}

// stripPrefix turns "172.20.20.7/24" into "172.20.20.7"
func stripPrefix(cidr string) string {
	addr, _, _ := strings.Cut(strings.TrimSpace(cidr), "/")
	return addr
}
