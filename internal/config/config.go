// Package config provides configuration management for labprov.
//
// Configuration is an explicit structure handed to each component at
// construction; nothing reads process-wide state after Load returns.
//
// Config file locations (priority order):
//  1. $LABPROV_CONFIG
//  2. ./labprov.yaml
//  3. ~/.config/labprov/config.yaml
//  4. /etc/labprov/config.yaml
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvDevicePassword overrides credentials.password
	EnvDevicePassword = "LABPROV_DEVICE_PASSWORD"
	// EnvDatabasePassword overrides database.password
	EnvDatabasePassword = "LABPROV_DB_PASSWORD"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	InspectorContainerlab = "containerlab"
	InspectorNmap         = "nmap"
	InspectorStatic       = "static"

	TransportEAPI = "eapi"
	TransportSSH  = "ssh"

	PolicySkip = "skip"
	PolicyFail = "fail"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// DefaultConfig returns sensible defaults for a containerlab cEOS lab
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "./labprov.db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.Name == "" {
		c.Database.Name = "device_inventory"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Credentials.Username == "" {
		c.Credentials.Username = "admin"
	}

	if c.Inspector.Kind == "" {
		c.Inspector.Kind = InspectorContainerlab
	}
	if c.Inspector.Topology == "" {
		c.Inspector.Topology = "lab.clab.yml"
	}
	if c.Inspector.Binary == "" {
		c.Inspector.Binary = "containerlab"
	}
	if len(c.Inspector.Kinds) == 0 {
		c.Inspector.Kinds = []string{"ceos"}
	}
	if c.Inspector.Ports == "" {
		c.Inspector.Ports = "22,443"
	}

	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportEAPI
	}
	if c.Transport.SSHPort == 0 {
		c.Transport.SSHPort = 22
	}
	if c.Transport.EAPIPort == 0 {
		c.Transport.EAPIPort = 443
	}
	if c.Transport.EAPIPath == "" {
		c.Transport.EAPIPath = "/command-api"
	}

	if c.Discovery.HostnameCommand == "" {
		c.Discovery.HostnameCommand = "show hostname"
	}
	if c.Discovery.LoopbackCommand == "" {
		c.Discovery.LoopbackCommand = "show ip interface loopback0"
	}
	if c.Discovery.InterfacesCommand == "" {
		c.Discovery.InterfacesCommand = "show ip interface brief"
	}

	if len(c.Templates.Protocols) == 0 {
		c.Templates.Protocols = []string{"isis", "mpls", "ipv6"}
	}

	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 5
	}
	if c.Pipeline.MissingLoopback == "" {
		c.Pipeline.MissingLoopback = PolicySkip
	}
}

// applyEnv lets secrets come from the environment instead of the file
func (c *Config) applyEnv() {
	if pw := os.Getenv(EnvDevicePassword); pw != "" {
		c.Credentials.Password = pw
	}
	if pw := os.Getenv(EnvDatabasePassword); pw != "" {
		c.Database.Password = pw
	}
}

// Validate rejects unknown enum values
func (c *Config) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"database.driver", c.Database.Driver, []string{DriverSQLite, DriverPostgres}},
		{"inspector.kind", c.Inspector.Kind, []string{InspectorContainerlab, InspectorNmap, InspectorStatic}},
		{"transport.kind", c.Transport.Kind, []string{TransportEAPI, TransportSSH}},
		{"pipeline.missing_loopback", c.Pipeline.MissingLoopback, []string{PolicySkip, PolicyFail}},
	}

	for _, chk := range checks {
		if !slices.Contains(chk.allow, chk.value) {
			return fmt.Errorf("invalid %s %q: want one of %v", chk.field, chk.value, chk.allow)
		}
	}

	if c.Inspector.Kind == InspectorNmap && len(c.Inspector.Targets) == 0 {
		return fmt.Errorf("inspector.targets required for nmap inspector")
	}
	if c.Inspector.Kind == InspectorStatic && len(c.Inspector.Addresses) == 0 {
		return fmt.Errorf("inspector.addresses required for static inspector")
	}

	return nil
}

// InspectorTimeout bounds one inspector query
func (c *Config) InspectorTimeout() time.Duration {
	return durationOr(c.Inspector.Timeout, 30*time.Second)
}

// ConnectTimeout bounds opening a device session
func (c *Config) ConnectTimeout() time.Duration {
	return durationOr(c.Transport.ConnectTimeout, 10*time.Second)
}

// CommandTimeout bounds one device request or command
func (c *Config) CommandTimeout() time.Duration {
	return durationOr(c.Transport.CommandTimeout, 30*time.Second)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	return fmt.Sprintf("store=%s inspector=%s transport=%s protocols=%v concurrency=%d missing_loopback=%s",
		c.Database.Driver, c.Inspector.Kind, c.Transport.Kind,
		c.Templates.Protocols, c.Pipeline.Concurrency, c.Pipeline.MissingLoopback)
}
