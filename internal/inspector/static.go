package inspector

import (
	"context"
	"fmt"
	"net"
)

// Static returns a fixed list of management addresses
type Static struct {
	addresses []string
}

// NewStatic creates an inspector over a fixed address list
func NewStatic(addresses []string) *Static {
	return &Static{addresses: addresses}
}

// Name returns the inspector identifier
func (s *Static) Name() string {
	return "static"
}

// Running returns one node per configured address
func (s *Static) Running(ctx context.Context) ([]Node, error) {
	nodes := make([]Node, 0, len(s.addresses))
	for _, addr := range s.addresses {
		if net.ParseIP(addr) == nil {
			return nil, fmt.Errorf("static inspector: invalid address %q", addr)
		}
		nodes = append(nodes, Node{Name: addr, Kind: "static", ManagementAddress: addr})
	}
	sortNodes(nodes)
	return nodes, nil
}
