// Package codec converts the device inventory to and from external formats.
package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"labprov/internal/domain"
	"labprov/internal/repository"
)

// Importer reads device records from an external format
type Importer interface {
	Parse(r io.Reader) ([]domain.Device, error)
	Format() string
}

// Exporter writes device records to an external format
type Exporter interface {
	Export(devices []domain.Device, w io.Writer) error
	Format() string
}

// Codec is both
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec registered under name
func ForFormat(name string) (Codec, error) {
	switch name {
	case "ansible", "ansible-inventory", "":
		return NewAnsibleCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unknown inventory format %q", name)
	}
}

// ImportReport lists what an import changed
type ImportReport struct {
	Updated int
	Ignored int
	Unknown []string
}

// ApplyInterfaces copies infrastructure interface lists onto stored devices.
// Devices not already in the store are reported, never created.
func ApplyInterfaces(ctx context.Context, store repository.Store, devices []domain.Device) (*ImportReport, error) {
	report := &ImportReport{}

	for _, dev := range devices {
		if dev.ManagementAddress == "" || len(dev.InfrastructureInterfaces) == 0 {
			report.Ignored++
			continue
		}

		err := store.SetInterfaces(ctx, dev.ManagementAddress, dev.InfrastructureInterfaces)
		if errors.Is(err, domain.ErrDeviceNotFound) {
			report.Unknown = append(report.Unknown, dev.ManagementAddress)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("import %s: %w", dev, err)
		}
		report.Updated++
	}

	sort.Strings(report.Unknown)
	return report, nil
}

func sortDevices(devices []domain.Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].ManagementAddress < devices[j].ManagementAddress
	})
}
