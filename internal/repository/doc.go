// Package repository defines the inventory store used by labprov.
//
// The Store interface is the single source of truth for devices. Discovery
// writes to it; the generator re-reads it on every pass and never caches.
//
// # Backends
//
// The sqlite subpackage stores the inventory in a local file (WAL mode) and
// is the default. The postgres subpackage targets a shared PostgreSQL
// instance. Both keep the same devices table:
//
//	devices(management_address PK, hostname, loopback_address,
//	        username, password, infrastructure_interfaces, created_at, updated_at)
//
// # Upsert
//
// Upsert is keyed by management address and is idempotent: repeating it
// with the same values leaves the row untouched, including updated_at.
// Each call runs in its own transaction and is rolled back on any error.
package repository
