package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"

	"labprov/internal/config"
	"labprov/internal/domain"
	"labprov/internal/repository"
)

// Repository implements repository.Store on PostgreSQL
type Repository struct {
	db *sql.DB
}

var _ repository.Store = (*Repository)(nil)

// DSN builds a lib/pq connection URL from the database section of the config
func DSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Name,
	}

	if cfg.User != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			connURL.User = url.User(cfg.User)
		}
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	query := connURL.Query()
	query.Set("sslmode", sslMode)
	query.Set("application_name", "labprov")
	connURL.RawQuery = query.Encode()

	return connURL.String()
}

// New connects to PostgreSQL and ensures the devices table exists
func New(ctx context.Context, cfg config.DatabaseConfig) (*Repository, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	repo := NewWithDB(db)
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to migrate database: %w", err)
	}

	return repo, nil
}

// NewWithDB wraps an already opened handle without migrating it
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS devices (
		management_address TEXT PRIMARY KEY,
		hostname TEXT NOT NULL,
		loopback_address TEXT,
		username TEXT,
		password TEXT,
		infrastructure_interfaces JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_devices_hostname ON devices(hostname);
	`)
	return err
}

// Close releases the connection pool
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (management_address, hostname, loopback_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (management_address) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			loopback_address = EXCLUDED.loopback_address,
			updated_at = CASE
				WHEN devices.hostname IS NOT DISTINCT FROM EXCLUDED.hostname
					AND devices.loopback_address IS NOT DISTINCT FROM EXCLUDED.loopback_address
				THEN devices.updated_at
				ELSE now()
			END`,
		managementAddress, hostname, repository.StringToNull(loopbackAddress))
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
		`SELECT `+repository.DeviceColumns+` FROM devices WHERE management_address = $1`,
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
			infrastructure_interfaces = $1::jsonb,
			updated_at = CASE
				WHEN infrastructure_interfaces IS NOT DISTINCT FROM $1::jsonb THEN updated_at
				ELSE now()
			END
		WHERE management_address = $2`,
		data, managementAddress)
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
