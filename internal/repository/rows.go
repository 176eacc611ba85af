package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"labprov/internal/domain"
)

// DeviceColumns is the column list every backend selects, in scan order
const DeviceColumns = `management_address, hostname, loopback_address, username, password,
	infrastructure_interfaces, created_at, updated_at`

// DeviceRow holds all columns from a device query for scanning.
// Column order MUST match DeviceColumns.
type DeviceRow struct {
	ManagementAddress string
	Hostname          string
	LoopbackAddress   sql.NullString
	Username          sql.NullString
	Password          sql.NullString
	InterfacesJSON    sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ScanArgs returns pointers to all fields for sql.Scan()
func (r *DeviceRow) ScanArgs() []interface{} {
	return []interface{}{
		&r.ManagementAddress,
		&r.Hostname,
		&r.LoopbackAddress,
		&r.Username,
		&r.Password,
		&r.InterfacesJSON,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

// ToDomain converts the row to a domain.Device
func (r *DeviceRow) ToDomain() (domain.Device, error) {
	dev := domain.Device{
		ManagementAddress: r.ManagementAddress,
		Hostname:          r.Hostname,
		LoopbackAddress:   NullToString(r.LoopbackAddress),
		Credentials: domain.Credentials{
			Username: NullToString(r.Username),
			Password: NullToString(r.Password),
		},
	}

	if r.InterfacesJSON.Valid && r.InterfacesJSON.String != "" {
		if err := json.Unmarshal([]byte(r.InterfacesJSON.String), &dev.InfrastructureInterfaces); err != nil {
			return dev, fmt.Errorf("unmarshal interfaces for %s: %w", r.ManagementAddress, err)
		}
	}

	return dev, nil
}

// NullToString safely converts sql.NullString to string
func NullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// StringToNull converts an empty string to SQL NULL
func StringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// MarshalInterfaces encodes an interface list; an empty list is stored as NULL
func MarshalInterfaces(interfaces []string) (sql.NullString, error) {
	if len(interfaces) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(interfaces)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ValidateUpsert rejects writes that would create a partially known row
func ValidateUpsert(managementAddress, hostname string) error {
	if managementAddress == "" {
		return fmt.Errorf("management address is required")
	}
	if hostname == "" {
		return fmt.Errorf("hostname is required for %s", managementAddress)
	}
	return nil
}
