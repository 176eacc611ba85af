package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingLoopback is returned when a device has no known loopback address
	ErrMissingLoopback = errors.New("loopback address unknown")
	// ErrMalformedAddress is returned when an address cannot be parsed as dotted-quad IPv4
	ErrMalformedAddress = errors.New("malformed IPv4 address")
	// ErrDeviceNotFound is returned when a management address is not in the inventory
	ErrDeviceNotFound = errors.New("device not found")
)

// Stage names the pipeline step a DeviceError happened in
type Stage string

const (
	StageConnect  Stage = "connect"
	StageQuery    Stage = "query"
	StagePersist  Stage = "persist"
	StageGenerate Stage = "generate"
	StageDeploy   Stage = "deploy"
)

// DeviceError is a failure isolated to a single device
type DeviceError struct {
	Stage   Stage
	Address string
	Host    string
	Err     error
}

// NewDeviceError builds a DeviceError for the given device
func NewDeviceError(stage Stage, dev Device, err error) DeviceError {
	return DeviceError{
		Stage:   stage,
		Address: dev.ManagementAddress,
		Host:    dev.Hostname,
		Err:     err,
	}
}

func (e DeviceError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Stage, e.Host, e.Address, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Address, e.Err)
}

func (e DeviceError) Unwrap() error {
	return e.Err
}
