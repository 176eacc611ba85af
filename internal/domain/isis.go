package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// isisAreaPrefix is the AFI 49 private area used for every lab router
const isisAreaPrefix = "49.0001"

// ISISNet derives the IS-IS NET from a loopback IPv4 address.
// Octets a.b.c.d become 49.0001.AABB.CCDD.00 with each octet as two
// uppercase hex digits.
func ISISNet(loopback string) (string, error) {
	octets, err := parseOctets(loopback)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%02X%02X.%02X%02X.00",
		isisAreaPrefix, octets[0], octets[1], octets[2], octets[3]), nil
}

// DeviceISISNet derives the NET for a device, naming it in any error
func DeviceISISNet(dev Device) (string, error) {
	if !dev.HasLoopback() {
		return "", fmt.Errorf("device %s: %w", dev, ErrMissingLoopback)
	}
	net, err := ISISNet(dev.LoopbackAddress)
	if err != nil {
		return "", fmt.Errorf("device %s: %w", dev, err)
	}
	return net, nil
}

func parseOctets(addr string) ([4]uint8, error) {
	var octets [4]uint8

	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return octets, fmt.Errorf("%w %q: expected 4 octets, got %d", ErrMalformedAddress, addr, len(parts))
	}

	for i, part := range parts {
		if part == "" {
			return octets, fmt.Errorf("%w %q: octet %d is empty", ErrMalformedAddress, addr, i+1)
		}
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return octets, fmt.Errorf("%w %q: octet %d (%q) is not a number in 0-255", ErrMalformedAddress, addr, i+1, part)
		}
		octets[i] = uint8(v)
	}

	return octets, nil
}
