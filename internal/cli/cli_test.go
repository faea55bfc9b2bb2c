package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdb/internal/packs"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

type harness struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("CMDB_LOG_LEVEL", "disabled")
	root := t.TempDir()
	return &harness{t: t, configDir: filepath.Join(root, "config"), dataDir: filepath.Join(root, "data")}
}

// run executes one cmdb invocation and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config-dir", h.configDir, "--data-dir", h.dataDir}, args...)
	err := Run(context.Background(), full, &out, &errOut)
	return out.String(), err
}

// runJSON executes args with --json and decodes stdout into v.
func (h *harness) runJSON(v any, args ...string) {
	h.t.Helper()
	out, err := h.run(append(args, "--json")...)
	require.NoError(h.t, err, out)
	require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
}

func (h *harness) writeBundle(name, manifest, typesYAML string) {
	h.t.Helper()
	dir := filepath.Join(h.dataDir, "store", name)
	require.NoError(h.t, os.MkdirAll(dir, 0o755))
	require.NoError(h.t, os.WriteFile(filepath.Join(dir, "pack.yaml"), []byte(manifest), 0o644))
	require.NoError(h.t, os.WriteFile(filepath.Join(dir, "types.yaml"), []byte(typesYAML), 0o644))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "cmdb v")
	assert.Contains(t, out, modulePath)
	_, statErr := os.Stat(h.configDir)
	assert.True(t, os.IsNotExist(statErr), "version does not touch the config dir")
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	var res map[string]string
	h.runJSON(&res, "init")
	assert.Equal(t, h.dataDir, res["data_dir"])

	for _, path := range []string{
		filepath.Join(h.configDir, "config.yaml"),
		filepath.Join(h.dataDir, "cmdb.db"),
		filepath.Join(h.dataDir, "packs"),
		filepath.Join(h.dataDir, "store"),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	config, err := os.ReadFile(filepath.Join(h.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(config), "backend: sqlite")

	_, err = h.run("init")
	assert.NoError(t, err, "init is idempotent")
}

func TestTypeAndEntityLifecycle(t *testing.T) {
	h := newHarness(t)
	defFile := filepath.Join(t.TempDir(), "rack.yaml")
	require.NoError(t, os.WriteFile(defFile, []byte(`
label: Rack
display_name: Server Rack
category: Hardware
properties: [name, units]
required: [name]
`), 0o644))

	_, err := h.run("type", "register", "--file", defFile)
	require.NoError(t, err)

	var defs []types.TypeDefinition
	h.runJSON(&defs, "type", "list")
	require.Len(t, defs, 1)
	assert.Equal(t, "Server Rack", defs[0].DisplayName)

	var created types.Entity
	h.runJSON(&created, "entity", "create", "Rack", "name=r1", "units=42", "--actor", "alice")
	assert.Equal(t, "r1", created.Properties["name"])
	assert.Equal(t, float64(42), created.Properties["units"])

	var updated types.Entity
	h.runJSON(&updated, "entity", "update", "Rack", created.ID, "status=active")
	assert.Equal(t, map[string]any{"name": "r1", "units": float64(42), "status": "active"}, updated.Properties)

	var got types.Entity
	h.runJSON(&got, "entity", "get", "Rack", created.ID)
	assert.Equal(t, updated.Properties, got.Properties)

	var listed []types.Entity
	h.runJSON(&listed, "entity", "list", "Rack", "--limit", "500")
	assert.Len(t, listed, 1)

	var deleted types.DeleteResult
	h.runJSON(&deleted, "entity", "delete", "Rack", created.ID)
	assert.Equal(t, "r1", deleted.DisplayName)

	_, err = h.run("entity", "get", "Rack", created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestEntityErrors(t *testing.T) {
	h := newHarness(t)
	defFile := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(defFile, []byte(`{"properties": ["name"], "required": ["name", "serial"]}`), 0o644))
	_, err := h.run("type", "register", "--file", defFile, "--label", "Device")
	require.NoError(t, err)

	_, err = h.run("entity", "create", "Device", "name=srv1")
	var missing *types.MissingPropertiesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"serial"}, missing.Missing)

	_, err = h.run("entity", "create", "Printer", "name=p1")
	assert.ErrorIs(t, err, types.ErrUnknownType)

	_, err = h.run("entity", "create", "Device`) DETACH DELETE (n", "name=x")
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)

	_, err = h.run("entity", "create", "Device", "--data", "[1, 2]")
	assert.ErrorIs(t, err, types.ErrInvalidPayload)

	_, err = h.run("entity", "create", "Device", "novalue")
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestPackLifecycle(t *testing.T) {
	h := newHarness(t)
	h.writeBundle("core_pack", "name: core_pack\ndisplay_name: Core\nversion: \"1.0.0\"\n",
		"Device:\n  category: Hardware\n  required: [name]\n")
	h.writeBundle("dns_pack", `name: dns_pack
display_name: DNS
version: "1.0.0"
dependencies: [core_pack]
tabs:
  - id: records
    name: Records
    for_labels: [DNS_Zone]
`, `DNS_Zone:
  required: [name]
DNS_Record:
  required: [name]
  relationships:
    IN_ZONE:
      target: DNS_Zone
`)

	_, err := h.run("pack", "install", "dns_pack")
	require.ErrorIs(t, err, types.ErrDependencyUnsatisfied)
	assert.Contains(t, err.Error(), "missing: core_pack")

	var results []packs.InstallResult
	h.runJSON(&results, "pack", "install", "core_pack", "dns_pack")
	require.Len(t, results, 2)
	assert.Equal(t, packs.StatusInstalled, results[1].Status)

	var infos []packs.PackInfo
	h.runJSON(&infos, "pack", "list")
	require.Len(t, infos, 2)
	assert.Equal(t, []string{"DNS"}, infos[0].Dependents)

	_, err = h.run("pack", "disable", "core_pack")
	require.ErrorIs(t, err, types.ErrDependentsBlocking)
	assert.Contains(t, err.Error(), "DNS")

	var tabs []types.Tab
	h.runJSON(&tabs, "pack", "tabs", "DNS_Zone")
	require.Len(t, tabs, 1)
	assert.Equal(t, "dns_pack", tabs[0].Pack)

	var zone, record types.Entity
	h.runJSON(&zone, "entity", "create", "DNS_Zone", "name=example.com")
	h.runJSON(&record, "entity", "create", "DNS_Record", "name=www")
	_, err = h.run("link", "add", "DNS_Record", record.ID, "IN_ZONE", "DNS_Zone", zone.ID)
	require.NoError(t, err)
	_, err = h.run("link", "add", "DNS_Record", record.ID, "IN_ZONE", "DNS_Zone", zone.ID)
	require.NoError(t, err, "adding an existing link is a no-op")

	var view linkView
	h.runJSON(&view, "link", "show", "DNS_Zone", zone.ID)
	require.Len(t, view.Incoming["IN_ZONE"], 1)
	assert.Equal(t, "www", view.Incoming["IN_ZONE"][0].DisplayName)

	_, err = h.run("link", "add", "DNS_Record", record.ID, "DEPENDS_ON", "DNS_Zone", zone.ID)
	assert.ErrorIs(t, err, types.ErrRelationshipNotAllowed, "DNS_Record declares its relationships")

	var dash []dashboardRow
	h.runJSON(&dash, "dashboard")
	counts := map[string]int{}
	for _, row := range dash {
		counts[row.Label] = row.Count
	}
	assert.Equal(t, map[string]int{"DNS_Record": 1, "DNS_Zone": 1, "Device": 0}, counts)

	_, err = h.run("link", "remove", "DNS_Record", record.ID, "IN_ZONE", "DNS_Zone", zone.ID)
	require.NoError(t, err)
	_, err = h.run("link", "remove", "DNS_Record", record.ID, "IN_ZONE", "DNS_Zone", zone.ID)
	assert.ErrorIs(t, err, types.ErrRelationshipNotFound)

	_, err = h.run("pack", "disable", "dns_pack")
	require.NoError(t, err)
	_, err = h.run("entity", "list", "DNS_Zone")
	assert.ErrorIs(t, err, types.ErrUnknownType, "types of a disabled pack stay unregistered after restart")

	_, err = h.run("pack", "remove", "dns_pack")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(h.dataDir, "packs", "dns_pack"))
	assert.True(t, os.IsNotExist(err))
}

func TestPackSyncAll(t *testing.T) {
	h := newHarness(t)
	dir := filepath.Join(h.dataDir, "packs", "core_pack")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.yaml"), []byte("name: core_pack\n"), 0o644))

	var rows []syncRow
	h.runJSON(&rows, "pack", "sync")
	require.Len(t, rows, 1)
	assert.Equal(t, syncRow{Pack: "core_pack", Synced: true}, rows[0])

	h.runJSON(&rows, "pack", "sync", "core_pack")
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Synced)
}

func TestCatalogExportImport(t *testing.T) {
	h := newHarness(t)
	defFile := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(defFile, []byte("label: Site\nrequired: [name]\n"), 0o644))
	_, err := h.run("type", "register", "--file", defFile)
	require.NoError(t, err)

	backup := filepath.Join(t.TempDir(), "backup")
	_, err = h.run("catalog", "export", backup)
	require.NoError(t, err)

	fresh := &harness{t: t, configDir: h.configDir, dataDir: filepath.Join(t.TempDir(), "fresh")}
	var counts map[string]int
	fresh.runJSON(&counts, "catalog", "import", backup)
	assert.Equal(t, map[string]int{"packs": 0, "types": 1}, counts)

	var defs []types.TypeDefinition
	fresh.runJSON(&defs, "type", "list")
	require.Len(t, defs, 1)
	assert.Equal(t, "Site", defs[0].Label)
}

func TestTableOutput(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("type", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "(none)")

	defFile := filepath.Join(t.TempDir(), "vm.yaml")
	require.NoError(t, os.WriteFile(defFile, []byte("label: VM\ncategory: Cloud\n"), 0o644))
	_, err = h.run("type", "register", "--file", defFile)
	require.NoError(t, err)

	out, err = h.run("type", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "Cloud")

	out, err = h.run("type", "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "VM")
}

func TestMetricsTextfile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "cmdb.prom")
	_, err := h.run("--metrics-textfile", path, "dashboard")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cmdb_registry_types")
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.configDir, "config.yaml"), []byte("backend: postgres\n"), 0o644))

	_, err := h.run("dashboard")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
	assert.Equal(t, exitUserError, exitCode(err))

	_, err = h.run("--log-level", "loud", "dashboard")
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestParseProps(t *testing.T) {
	props, err := parseProps(`{"name": "srv1", "tags": ["a"]}`, []string{"name=srv2", "rack=12", "ip=10.0.0.1", "on=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name": "srv2",
		"tags": []any{"a"},
		"rack": float64(12),
		"ip":   "10.0.0.1",
		"on":   true,
	}, props)

	_, err = parseProps("", []string{"=x"})
	assert.ErrorIs(t, err, errUsage)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitUserError, exitCode(types.UnknownTypeError("X")))
	assert.Equal(t, exitUserError, exitCode(&types.DependencyError{Pack: "p", Missing: []string{"q"}}))
	assert.Equal(t, exitSysError, exitCode(fmt.Errorf("query: %w", types.ErrStoreUnavailable)))
	assert.Equal(t, exitSysError, exitCode(errors.New("boom")))
}
