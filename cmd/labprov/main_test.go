package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labprov/internal/repository/sqlite"
)

// fakeLab answers eAPI requests like a single cEOS router
type fakeLab struct {
	mu         sync.Mutex
	failConfig bool
	applied    [][]string
}

func (l *fakeLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params struct {
			Format string   `json:"format"`
			Cmds   []string `json:"cmds"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Params.Format == "json" {
		l.mu.Lock()
		l.applied = append(l.applied, req.Params.Cmds)
		fail := l.failConfig
		l.mu.Unlock()
		if fail {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":[]}`)
		return
	}

	var output string
	switch req.Params.Cmds[0] {
	case "show hostname":
		output = "Hostname: r1\nFQDN:     r1\n"
	case "show ip interface loopback0":
		output = "Loopback0 is up, line protocol is up (connected)\n  Description: router-id\n  IP Address: 10.255.0.1/32\n"
	case "show ip interface brief":
		output = "Interface    IP Address      Status  Protocol  MTU\nEthernet1    10.0.0.0/31     up      up        1500\nManagement0  172.20.20.2/24  up      up        1500\n"
	}
	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      "1",
		"result":  []map[string]string{{"output": output}},
	})
	w.Write(body)
}

func (l *fakeLab) configs() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.applied...)
}

// writeConfig points a static inspector and the eAPI transport at srv
func writeConfig(t *testing.T, srv *httptest.Server) (cfgPath, dbPath string) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "inventory.db")
	cfgPath = filepath.Join(dir, "labprov.yaml")

	yaml := fmt.Sprintf(`version: 1
database:
  driver: sqlite
  path: %s
credentials:
  username: admin
  password: s3cret
inspector:
  kind: static
  addresses: [%s]
transport:
  kind: eapi
  eapi_port: %s
  connect_timeout: 2s
  command_timeout: 2s
logging:
  level: error
`, dbPath, u.Hostname(), u.Port())
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	return cfgPath, dbPath
}

func startLab(t *testing.T, lab *fakeLab) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(lab)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunDiscoversAndDeploysEveryProtocol(t *testing.T) {
	lab := &fakeLab{}
	cfgPath, dbPath := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfgPath, "run"}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "discover: 1 found, 1 recorded, 0 incomplete, 0 failed")
	assert.Contains(t, stdout.String(), "isis: 1 generated")
	assert.Contains(t, stdout.String(), "ipv6: 1 generated")

	configs := lab.configs()
	require.Len(t, configs, 3)
	for _, cmds := range configs {
		assert.Equal(t, []string{"enable", "configure"}, cmds[:2])
		assert.Equal(t, []string{"end", "write memory"}, cmds[len(cmds)-2:])
	}
	assert.Contains(t, strings.Join(configs[0], "\n"), "49.0001.0AFF.0001.00")

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()

	devices, err := store.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "r1", devices[0].Hostname)
	assert.Equal(t, "10.255.0.1", devices[0].LoopbackAddress)
	assert.Equal(t, []string{"Ethernet1"}, devices[0].InfrastructureInterfaces)
}

func TestRunTemplatesFlagSelectsProtocols(t *testing.T) {
	lab := &fakeLab{}
	cfgPath, _ := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfgPath, "--templates", "mpls", "run"}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Len(t, lab.configs(), 1)
	assert.NotContains(t, stdout.String(), "isis:")
}

func TestUnknownTemplateListsAvailable(t *testing.T) {
	lab := &fakeLab{}
	cfgPath, _ := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfgPath, "--templates", "bgp,mpls", "--strict", "run"}, &stdout, &stderr)
	require.Error(t, err)

	assert.Contains(t, stdout.String(), "bgp: aborted: generate bgp: unknown template (available: ipv6, isis, mpls)")
	assert.Contains(t, stdout.String(), "mpls: 1 generated")
	assert.Len(t, lab.configs(), 1)
}

func TestDeployFailuresExitZeroWithoutStrict(t *testing.T) {
	lab := &fakeLab{failConfig: true}
	cfgPath, _ := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfgPath, "run"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "1 apply failed")
}

func TestStrictExitsTwoOnDeviceFailure(t *testing.T) {
	lab := &fakeLab{failConfig: true}
	cfgPath, _ := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfgPath, "--strict", "run"}, &stdout, &stderr)
	require.Error(t, err)

	var coded *exitError
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, 2, coded.ExitCode())
	assert.Contains(t, err.Error(), "3 device failure(s)")
}

func TestDeployWithEmptyInventory(t *testing.T) {
	lab := &fakeLab{}
	cfgPath, _ := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfgPath, "--strict", "deploy"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, lab.configs())
	assert.Contains(t, stdout.String(), "isis: 0 generated")
}

func TestInventoryExportAndImport(t *testing.T) {
	lab := &fakeLab{}
	cfgPath, dbPath := writeConfig(t, startLab(t, lab))

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--config", cfgPath, "discover"}, &stdout, &stderr))
	assert.Empty(t, lab.configs())

	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"--config", cfgPath, "--format", "json", "inventory", "export", "-"}, &stdout, &stderr))

	var doc struct {
		Devices []struct {
			Hostname        string `json:"hostname"`
			LoopbackAddress string `json:"loopback_address"`
		} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	require.Len(t, doc.Devices, 1)
	assert.Equal(t, "r1", doc.Devices[0].Hostname)
	assert.NotContains(t, stdout.String(), "s3cret")

	exportPath := filepath.Join(t.TempDir(), "hosts.yml")
	require.NoError(t, run(context.Background(), []string{"--config", cfgPath, "inventory", "export", exportPath}, &stdout, &stderr))
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "routers")
	assert.Contains(t, string(data), "10.255.0.1")

	edited := strings.Replace(string(data), "Ethernet1", "Ethernet7", 1)
	require.NoError(t, os.WriteFile(exportPath, []byte(edited), 0o600))

	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"--config", cfgPath, "inventory", "import", exportPath}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "updated 1")

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()
	devices, err := store.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, []string{"Ethernet7"}, devices[0].InfrastructureInterfaces)
}

func TestUsageErrors(t *testing.T) {
	cfgPath, _ := writeConfig(t, startLab(t, &fakeLab{}))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", []string{"--config", cfgPath}, "no command given"},
		{"unknown command", []string{"--config", cfgPath, "provision"}, `unknown command "provision"`},
		{"inventory arity", []string{"--config", cfgPath, "inventory", "export"}, "usage"},
		{"inventory verb", []string{"--config", cfgPath, "inventory", "sync", "-"}, `unknown inventory command "sync"`},
		{"bad flag", []string{"--bogus"}, "unknown flag"},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "run"}, "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHelpIsNotAnError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--strict")
}
