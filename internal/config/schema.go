package config

import (
	"time"

	"labprov/internal/logger"
)

// Config is the root configuration structure
type Config struct {
	Version     int               `yaml:"version"`
	Database    DatabaseConfig    `yaml:"database"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Inspector   InspectorConfig   `yaml:"inspector"`
	Transport   TransportConfig   `yaml:"transport"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Templates   TemplatesConfig   `yaml:"templates"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Logging     logger.Config     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DatabaseConfig selects and locates the inventory store
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite, postgres
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode"`
}

// CredentialsConfig holds the shared device login for the environment
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
}

// InspectorConfig selects how running lab devices are found
type InspectorConfig struct {
	Kind      string    `yaml:"kind"` // containerlab, nmap, static
	Topology  string    `yaml:"topology"`
	Sudo      bool      `yaml:"sudo"`
	Binary    string    `yaml:"binary"`
	Kinds     []string  `yaml:"kinds"`
	Targets   []string  `yaml:"targets,omitempty"` // nmap CIDRs
	Ports     string    `yaml:"ports"`             // nmap management ports
	Addresses []string  `yaml:"addresses,omitempty"`
	Timeout   *Duration `yaml:"timeout,omitempty"`
}

// TransportConfig selects the device transport strategy
type TransportConfig struct {
	Kind           string    `yaml:"kind"` // eapi, ssh
	SSHPort        int       `yaml:"ssh_port"`
	EAPIPort       int       `yaml:"eapi_port"`
	EAPIPath       string    `yaml:"eapi_path"`
	VerifyTLS      bool      `yaml:"verify_tls"`
	ConnectTimeout *Duration `yaml:"connect_timeout,omitempty"`
	CommandTimeout *Duration `yaml:"command_timeout,omitempty"`
}

// DiscoveryConfig holds the show commands used to learn device identity
type DiscoveryConfig struct {
	HostnameCommand   string `yaml:"hostname_command"`
	LoopbackCommand   string `yaml:"loopback_command"`
	InterfacesCommand string `yaml:"interfaces_command"`
}

// TemplatesConfig locates protocol templates and the default run order
type TemplatesConfig struct {
	Dir       string   `yaml:"dir,omitempty"` // empty = embedded defaults
	Protocols []string `yaml:"protocols"`
}

// PipelineConfig controls fan-out and failure policy
type PipelineConfig struct {
	Concurrency     int    `yaml:"concurrency"`
	MissingLoopback string `yaml:"missing_loopback"` // skip, fail
	Strict          bool   `yaml:"strict"`
}

// MetricsConfig controls the end-of-run metrics dump
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// durationOr returns d or fallback when d is unset
func durationOr(d *Duration, fallback time.Duration) time.Duration {
	if d == nil || *d <= 0 {
		return fallback
	}
	return d.Duration()
}
