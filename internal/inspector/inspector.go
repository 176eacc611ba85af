// Package inspector finds the routers currently running in the lab.
//
// An Inspector only reports where devices can be reached; identity
// (hostname, loopback) is learned later by discovery over a device session.
package inspector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"labprov/internal/config"
)

// Node is a running lab device as seen by the inspector
type Node struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	ManagementAddress string `json:"management_address"`
}

// Inspector lists running nodes
type Inspector interface {
	// Name returns the inspector identifier
	Name() string
	// Running returns the reachable nodes, sorted by name
	Running(ctx context.Context) ([]Node, error)
}

// New builds the inspector selected by cfg.Kind
func New(cfg config.InspectorConfig, timeout time.Duration, log zerolog.Logger) (Inspector, error) {
	switch cfg.Kind {
	case config.InspectorContainerlab, "":
		return NewContainerlab(cfg.Topology,
			WithSudo(cfg.Sudo),
			WithBinary(cfg.Binary),
			WithKinds(cfg.Kinds...),
			WithInspectTimeout(timeout),
			WithLogger(log),
		), nil
	case config.InspectorNmap:
		return NewNmap(cfg.Targets,
			WithPorts(cfg.Ports),
			WithScanTimeout(timeout),
			WithScanLogger(log),
		), nil
	case config.InspectorStatic:
		return NewStatic(cfg.Addresses), nil
	default:
		return nil, fmt.Errorf("unknown inspector kind %q", cfg.Kind)
	}
}

func sortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Name == nodes[j].Name {
			return nodes[i].ManagementAddress < nodes[j].ManagementAddress
		}
		return nodes[i].Name < nodes[j].Name
	})
}
