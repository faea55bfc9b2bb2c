package packs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/internal/registry"
	"github.com/mesh-intelligence/cmdb/internal/sqlite"
)

type fixture struct {
	m        *Manager
	reg      *registry.Registry
	hooks    *hooks.Dispatcher
	catalog  *sqlite.Backend
	storeDir string
	packsDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	catalog, err := sqlite.Open(filepath.Join(root, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	f := &fixture{
		reg:      registry.New(),
		hooks:    hooks.NewDispatcher(),
		catalog:  catalog,
		storeDir: filepath.Join(root, "store"),
		packsDir: filepath.Join(root, "packs"),
	}
	f.m = New(catalog, f.reg,
		WithHooks(f.hooks),
		WithStoreDir(f.storeDir),
		WithPacksDir(f.packsDir),
	)
	return f
}

type bundleSpec struct {
	name        string
	displayName string
	version     string
	deps        []string
	hooks       []string
	extra       string
	types       string
}

// writeBundle writes a pack.yaml and types.yaml for spec under root.
func writeBundle(t *testing.T, root string, spec bundleSpec) string {
	t.Helper()
	dir := filepath.Join(root, spec.name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", spec.name)
	if spec.displayName != "" {
		fmt.Fprintf(&b, "display_name: %s\n", spec.displayName)
	}
	if spec.version != "" {
		fmt.Fprintf(&b, "version: %q\n", spec.version)
	}
	if len(spec.deps) > 0 {
		fmt.Fprintf(&b, "dependencies: [%s]\n", strings.Join(spec.deps, ", "))
	}
	if len(spec.hooks) > 0 {
		fmt.Fprintf(&b, "hooks: [%s]\n", strings.Join(spec.hooks, ", "))
	}
	b.WriteString(spec.extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.yaml"), []byte(b.String()), 0o644))

	if spec.types != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "types.yaml"), []byte(spec.types), 0o644))
	}
	return dir
}

const coreTypes = `
Device:
  display_name: Device
  category: Hardware
  properties: [name, status]
  required: [name]
  relationships:
    DEPENDS_ON:
      target: Device
Application:
  properties: [name]
`

const dnsTypes = `
DNS_Zone:
  category: DNS
  required: [name]
DNS_Record:
  category: DNS
  properties:
    - name
    - name: type
      choices: [A, AAAA, CNAME]
  relationships:
    IN_ZONE:
      target: DNS_Zone
`

func corePack(version string) bundleSpec {
	return bundleSpec{name: "core_pack", displayName: "Core", version: version, types: coreTypes}
}

func dnsPack(version string) bundleSpec {
	return bundleSpec{name: "dns_pack", displayName: "DNS", version: version, deps: []string{"core_pack"}, types: dnsTypes}
}

func (f *fixture) install(t *testing.T, spec bundleSpec) *InstallResult {
	t.Helper()
	writeBundle(t, f.storeDir, spec)
	res, err := f.m.Install(context.Background(), spec.name)
	require.NoError(t, err)
	return res
}
