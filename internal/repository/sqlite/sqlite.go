package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"labprov/internal/domain"
	"labprov/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Store using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Store = (*Repository)(nil)

// New opens (creating if needed) the SQLite inventory at dbPath
func New(dbPath string) (*Repository, error) {
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		management_address TEXT PRIMARY KEY,
		hostname TEXT NOT NULL,
		loopback_address TEXT,
		username TEXT,
		password TEXT,
		infrastructure_interfaces JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_devices_hostname ON devices(hostname);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close releases the database handle
func (r *Repository) Close() error {
	return r.db.Close()
}

// Upsert inserts a device or updates hostname and loopback in place
func (r *Repository) Upsert(ctx context.Context, managementAddress, hostname, loopbackAddress string) error {
	if err := repository.ValidateUpsert(managementAddress, hostname); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// updated_at only moves when a value actually changed
	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (management_address, hostname, loopback_address, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(management_address) DO UPDATE SET
			hostname = excluded.hostname,
			loopback_address = excluded.loopback_address,
			updated_at = CASE
				WHEN devices.hostname IS excluded.hostname
					AND devices.loopback_address IS excluded.loopback_address
				THEN devices.updated_at
				ELSE CURRENT_TIMESTAMP
			END
	`, managementAddress, hostname, repository.StringToNull(loopbackAddress))
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", managementAddress, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListDevices returns all devices ordered by management address
func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+repository.DeviceColumns+` FROM devices ORDER BY management_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		var row repository.DeviceRow
		if err := rows.Scan(row.ScanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		dev, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

// GetDevice retrieves a single device, nil if absent
func (r *Repository) GetDevice(ctx context.Context, managementAddress string) (*domain.Device, error) {
	var row repository.DeviceRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+repository.DeviceColumns+` FROM devices WHERE management_address = ?`,
		managementAddress,
	).Scan(row.ScanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", managementAddress, err)
	}

	dev, err := row.ToDomain()
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// SetInterfaces replaces the infrastructure interface list of a device
func (r *Repository) SetInterfaces(ctx context.Context, managementAddress string, interfaces []string) error {
	data, err := repository.MarshalInterfaces(interfaces)
	if err != nil {
		return fmt.Errorf("failed to marshal interfaces: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE devices SET
			infrastructure_interfaces = ?,
			updated_at = CASE
				WHEN infrastructure_interfaces IS ? THEN updated_at
				ELSE CURRENT_TIMESTAMP
			END
		WHERE management_address = ?
	`, data, data, managementAddress)
	if err != nil {
		return fmt.Errorf("failed to set interfaces for %s: %w", managementAddress, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set interfaces %s: %w", managementAddress, domain.ErrDeviceNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
