package inspector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"
)

// Nmap finds lab devices by scanning management subnets
type Nmap struct {
	targets []string
	ports   string
	timeout time.Duration
	log     zerolog.Logger
}

// NmapOption is a functional option for configuring Nmap
type NmapOption func(*Nmap)

// WithPorts sets the management ports to probe.
// Format: "22,443" or "22-23,443"
func WithPorts(ports string) NmapOption {
	return func(n *Nmap) {
		if validated, err := parsePorts(ports); err == nil {
			n.ports = validated
		}
	}
}

// WithScanTimeout bounds each scan
func WithScanTimeout(d time.Duration) NmapOption {
	return func(n *Nmap) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithScanLogger sets the logger
func WithScanLogger(log zerolog.Logger) NmapOption {
	return func(n *Nmap) {
		n.log = log
	}
}

// NewNmap creates an nmap-based inspector.
// targets: list of CIDR ranges or individual IPs to scan
func NewNmap(targets []string, opts ...NmapOption) *Nmap {
	n := &Nmap{
		targets: targets,
		ports:   "22,443",
		timeout: 5 * time.Minute,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the inspector identifier
func (n *Nmap) Name() string {
	return "nmap"
}

// Running scans every target and returns hosts with a management port open
func (n *Nmap) Running(ctx context.Context) ([]Node, error) {
	if len(n.targets) == 0 {
		return nil, fmt.Errorf("nmap: no targets configured")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(n.targets...),
		nmap.WithPorts(n.ports),
	)
	if err != nil {
		return nil, fmt.Errorf("nmap: failed to create scanner: %w", err)
	}

	n.log.Info().Strs("targets", n.targets).Str("ports", n.ports).Msg("Starting nmap scan")

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("nmap: scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		n.log.Warn().Strs("warnings", *warnings).Msg("Nmap reported warnings")
	}

	nodes := hostsToNodes(result)
	n.log.Info().Int("nodes", len(nodes)).Msg("Nmap scan complete")
	return nodes, nil
}

// hostsToNodes keeps hosts that are up with at least one open port
func hostsToNodes(result *nmap.Run) []Node {
	if result == nil {
		return nil
	}

	var nodes []Node
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var ip string
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				ip = addr.Addr
				break
			}
		}
		if ip == "" || !hasOpenPort(host.Ports) {
			continue
		}

		name := ip
		if len(host.Hostnames) > 0 && host.Hostnames[0].Name != "" {
			name = host.Hostnames[0].Name
		}

		nodes = append(nodes, Node{Name: name, Kind: "nmap", ManagementAddress: ip})
	}

	sortNodes(nodes)
	return nodes
}

func hasOpenPort(ports []nmap.Port) bool {
	for _, p := range ports {
		if p.State.State == "open" {
			return true
		}
	}
	return false
}

// parsePorts validates a port list in nmap format
func parsePorts(portRange string) (string, error) {
	if strings.TrimSpace(portRange) == "" {
		return "", fmt.Errorf("empty port range")
	}
	for _, part := range strings.Split(portRange, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parsePort(lo)
			if err != nil {
				return "", err
			}
			end, err := parsePort(hi)
			if err != nil || end < start {
				return "", fmt.Errorf("invalid port range: %s", part)
			}
			continue
		}
		if _, err := parsePort(part); err != nil {
			return "", err
		}
	}
	return portRange, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port number: %s", s)
	}
	return port, nil
}
