package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %s, want %s", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Transport.Kind != TransportEAPI {
		t.Errorf("Transport.Kind = %s, want %s", cfg.Transport.Kind, TransportEAPI)
	}
	if cfg.Pipeline.MissingLoopback != PolicySkip {
		t.Errorf("Pipeline.MissingLoopback = %s, want %s", cfg.Pipeline.MissingLoopback, PolicySkip)
	}
	want := []string{"isis", "mpls", "ipv6"}
	if len(cfg.Templates.Protocols) != len(want) {
		t.Fatalf("Templates.Protocols = %v, want %v", cfg.Templates.Protocols, want)
	}
	for i := range want {
		if cfg.Templates.Protocols[i] != want[i] {
			t.Errorf("Templates.Protocols[%d] = %s, want %s", i, cfg.Templates.Protocols[i], want[i])
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestTimeoutDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ConnectTimeout() != 10*time.Second {
		t.Errorf("ConnectTimeout = %s, want 10s", cfg.ConnectTimeout())
	}
	if cfg.CommandTimeout() != 30*time.Second {
		t.Errorf("CommandTimeout = %s, want 30s", cfg.CommandTimeout())
	}

	d := Duration(3 * time.Second)
	cfg.Transport.ConnectTimeout = &d
	if cfg.ConnectTimeout() != 3*time.Second {
		t.Errorf("ConnectTimeout override = %s, want 3s", cfg.ConnectTimeout())
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labprov.yaml")

	content := `
database:
  driver: postgres
  host: db.lab
  user: lab
credentials:
  username: ops
  password: fromfile
inspector:
  kind: containerlab
  topology: evpn.clab.yml
  sudo: true
transport:
  kind: ssh
  connect_timeout: 5s
templates:
  protocols: [isis]
pipeline:
  concurrency: 2
  missing_loopback: fail
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvDevicePassword, "fromenv")

	cfg, loadedPath, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loadedPath != path {
		t.Errorf("path = %s, want %s", loadedPath, path)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.Host != "db.lab" {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port default not applied: %d", cfg.Database.Port)
	}
	if cfg.Credentials.Password != "fromenv" {
		t.Errorf("env password should win, got %q", cfg.Credentials.Password)
	}
	if cfg.Transport.Kind != TransportSSH {
		t.Errorf("Transport.Kind = %s", cfg.Transport.Kind)
	}
	if cfg.ConnectTimeout() != 5*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.ConnectTimeout())
	}
	if cfg.Pipeline.Concurrency != 2 || cfg.Pipeline.MissingLoopback != PolicyFail {
		t.Errorf("unexpected pipeline config %+v", cfg.Pipeline)
	}
	if len(cfg.Templates.Protocols) != 1 || cfg.Templates.Protocols[0] != "isis" {
		t.Errorf("Templates.Protocols = %v", cfg.Templates.Protocols)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s", cfg.Logging.Level)
	}
}

func TestLoadFromPathInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "database: [unclosed"},
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"unknown transport", "transport:\n  kind: telnet\n"},
		{"unknown policy", "pipeline:\n  missing_loopback: ignore\n"},
		{"nmap without targets", "inspector:\n  kind: nmap\n"},
		{"static without addresses", "inspector:\n  kind: static\n"},
		{"bad duration", "transport:\n  connect_timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "labprov.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, err := LoadFromPath(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFindConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvConfigPath, path)
	if got := FindConfigPath(); got != path {
		t.Errorf("FindConfigPath() = %q, want %q", got, path)
	}
}

func TestFindConfigPathExplicitMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	t.Setenv(EnvConfigPath, missing)

	if got := FindConfigPath(); got != missing {
		t.Errorf("FindConfigPath() = %q, want %q", got, missing)
	}
	if _, _, err := Load(); err == nil {
		t.Error("Load() with missing $LABPROV_CONFIG should fail")
	}
}

func TestSearchPathsOrder(t *testing.T) {
	env := map[string]string{
		"XDG_CONFIG_HOME": "/xdg",
		"HOME":            "/home/lab",
	}
	got := searchPaths(func(k string) string { return env[k] })
	want := []string{
		"labprov.yaml",
		"labprov.yml",
		"/xdg/labprov/config.yaml",
		"/home/lab/.config/labprov/config.yaml",
		"/etc/labprov/config.yaml",
	}
	if len(got) != len(want) {
		t.Fatalf("searchPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("searchPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindConfigPathFirstExisting(t *testing.T) {
	env := map[string]string{"HOME": "/home/lab"}
	existing := map[string]bool{
		"/home/lab/.config/labprov/config.yaml": true,
		"/etc/labprov/config.yaml":              true,
	}

	got := findConfigPath(func(k string) string { return env[k] }, func(p string) bool { return existing[p] })
	if got != "/home/lab/.config/labprov/config.yaml" {
		t.Errorf("findConfigPath() = %q", got)
	}

	none := findConfigPath(func(string) string { return "" }, func(string) bool { return false })
	if none != "" {
		t.Errorf("findConfigPath() with nothing present = %q, want empty", none)
	}
}

func TestDurationYAML(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error = %v", err)
	}
	if out != "1m30s" {
		t.Errorf("MarshalYAML() = %v, want 1m30s", out)
	}
}
