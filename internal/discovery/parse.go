package discovery

import (
	"net"
	"strings"
)

// ParseHostname extracts the device name from `show hostname` output.
// EOS prints "Hostname: <name>"; other output is taken verbatim.
func ParseHostname(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Hostname:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(output)
}

// ParseLoopback returns the address from the first "IP Address" line of
// `show ip interface loopback0`, without its prefix length. ok is false
// when the marker is absent.
func ParseLoopback(output string) (addr string, ok bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "IP Address") {
			continue
		}
		_, rest, found := strings.Cut(line, ":")
		if !found {
			return "", false
		}
		addr, _, _ = strings.Cut(strings.TrimSpace(rest), "/")
		addr = strings.TrimSpace(addr)
		return addr, addr != ""
	}
	return "", false
}

// ParseInterfaces returns the routed Ethernet interfaces listed by
// `show ip interface brief`, in output order
func ParseInterfaces(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "Ethernet") {
			continue
		}
		ip, _, err := net.ParseCIDR(fields[1])
		if err != nil || ip.To4() == nil {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}
