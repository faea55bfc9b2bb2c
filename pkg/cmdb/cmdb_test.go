package cmdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func writePack(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "core_pack")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pack.yaml"),
		[]byte("name: core_pack\nversion: \"1.0.0\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.yaml"),
		[]byte("Device:\n  required: [name]\n  relationships:\n    DEPENDS_ON:\n      target: Device\n"), 0o644))
}

func TestOpen_StartupAndDeviceScenario(t *testing.T) {
	dataDir := t.TempDir()
	writePack(t, filepath.Join(dataDir, PacksDirName))
	ctx := context.Background()

	var events []hooks.Event
	reg := prometheus.NewRegistry()
	sys, err := Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: dataDir},
		WithPrometheus(reg),
		WithHook(hooks.HookFunc(func(_ context.Context, ev hooks.Event) error {
			events = append(events, ev)
			return nil
		})),
	)
	require.NoError(t, err)
	defer sys.Close()

	require.NotNil(t, sys.Startup)
	assert.Equal(t, []string{"core_pack"}, sys.Startup.Synced)
	assert.True(t, sys.Registry.Has("Device"))
	assert.Equal(t, 1.0, testutil.ToFloat64(sys.Metrics.RegisteredTypes))

	dev, err := sys.Engine.Create(ctx, "Device", map[string]any{"name": "srv1"})
	require.NoError(t, err)
	dev, err = sys.Engine.Update(ctx, "Device", dev.ID, map[string]any{"status": "maintenance"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "srv1", "status": "maintenance"}, dev.Properties)

	res, err := sys.Engine.Delete(ctx, "Device", dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "srv1", res.DisplayName)
	_, err = sys.Engine.Get(ctx, "Device", dev.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.Len(t, events, 3)
	assert.Equal(t, hooks.ActionCreate, events[0].Action)
	assert.Equal(t, hooks.ActionUpdate, events[1].Action)
	assert.Equal(t, hooks.ActionDelete, events[2].Action)
}

func TestOpen_RegistrySurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}

	sys, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, sys.Packs.RegisterType(ctx, types.TypeDefinition{Label: "Rack"}))
	require.NoError(t, sys.Close())

	sys, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer sys.Close()
	assert.True(t, sys.Registry.Has("Rack"))
}

func TestOpen_WithoutStartup(t *testing.T) {
	dataDir := t.TempDir()
	writePack(t, filepath.Join(dataDir, PacksDirName))

	sys, err := Open(context.Background(), types.Config{Backend: types.BackendSQLite, DataDir: dataDir}, WithoutStartup())
	require.NoError(t, err)
	defer sys.Close()
	assert.Nil(t, sys.Startup)
	assert.False(t, sys.Registry.Has("Device"))
	assert.Equal(t, filepath.Join(dataDir, PacksDirName), sys.Packs.PacksDir())
	assert.Equal(t, filepath.Join(dataDir, StoreDirName), sys.Packs.StoreDir())
}

func TestOpen_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	for name, cfg := range map[string]types.Config{
		"no backend":      {DataDir: t.TempDir()},
		"unknown backend": {Backend: "postgres", DataDir: t.TempDir()},
		"no data dir":     {Backend: types.BackendSQLite},
		"neo4j no uri":    {Backend: types.BackendNeo4j, DataDir: t.TempDir()},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Open(ctx, cfg)
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	sys, err := Open(context.Background(), types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, sys.Close())
	require.NoError(t, sys.Close())
}
