package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"labprov/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

type jsonInventory struct {
	Devices []domain.Device `json:"devices"`
}

// Parse reads a {"devices": [...]} document
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Device, error) {
	var inv jsonInventory
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	sortDevices(inv.Devices)
	return inv.Devices, nil
}

// Export writes devices as indented JSON. Passwords are never written.
func (c *JSONCodec) Export(devices []domain.Device, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if devices == nil {
		devices = []domain.Device{}
	}
	if err := encoder.Encode(jsonInventory{Devices: devices}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
