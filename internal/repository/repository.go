package repository

import (
	"context"

	"labprov/internal/domain"
)

// Store is the durable device inventory
type Store interface {
	// Upsert inserts a device or, when the management address already
	// exists, overwrites its hostname and loopback address. One transaction
	// per call; on error nothing is written.
	Upsert(ctx context.Context, managementAddress, hostname, loopbackAddress string) error

	// ListDevices returns every device ordered by management address
	ListDevices(ctx context.Context) ([]domain.Device, error)

	// GetDevice returns nil, nil when the address is unknown
	GetDevice(ctx context.Context, managementAddress string) (*domain.Device, error)

	// SetInterfaces replaces the infrastructure interface list of an existing device
	SetInterfaces(ctx context.Context, managementAddress string, interfaces []string) error

	// Close releases resources
	Close() error
}
