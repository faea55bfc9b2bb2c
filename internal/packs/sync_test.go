package packs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func TestShouldSync(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &Bundle{ModTime: now}

	assert.True(t, ShouldSync(b, nil))
	assert.True(t, ShouldSync(b, &types.FeaturePack{LastSynced: now.Add(-time.Minute)}))
	assert.False(t, ShouldSync(b, &types.FeaturePack{LastSynced: now}))
	assert.False(t, ShouldSync(b, &types.FeaturePack{LastSynced: now.Add(time.Minute)}))
}

func TestSync_Staleness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := writeBundle(t, f.packsDir, corePack("1.0.0"))
	syncedAt := time.Now().Add(time.Hour)
	f.m.now = func() time.Time { return syncedAt }

	synced, err := f.m.Sync(ctx, "core_pack")
	require.NoError(t, err)
	assert.True(t, synced, "first sync records the pack")
	assert.True(t, f.reg.Has("Device"))

	row, err := f.catalog.GetPack(ctx, "core_pack")
	require.NoError(t, err)
	assert.True(t, row.Enabled, "first sync enables the pack")

	synced, err = f.m.Sync(ctx, "core_pack")
	require.NoError(t, err)
	assert.False(t, synced, "unchanged bundle is skipped")

	touched := syncedAt.Add(time.Minute)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.yaml"), []byte("Server:\n  properties: [hostname]\n"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "types.yaml"), touched, touched))
	f.m.now = func() time.Time { return touched.Add(time.Minute) }

	synced, err = f.m.Sync(ctx, "core_pack")
	require.NoError(t, err)
	assert.True(t, synced)
	assert.True(t, f.reg.Has("Server"))
	assert.False(t, f.reg.Has("Device"), "types dropped from the bundle are unregistered")
}

func TestSync_KeepsDisabledFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := writeBundle(t, f.packsDir, corePack("1.0.0"))
	_, err := f.m.Sync(ctx, "core_pack")
	require.NoError(t, err)
	require.NoError(t, f.m.Disable(ctx, "core_pack"))

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "pack.yaml"), later, later))
	synced, err := f.m.Sync(ctx, "core_pack")
	require.NoError(t, err)
	assert.True(t, synced)
	assert.False(t, f.reg.Has("Device"))
}

func TestSync_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Sync(ctx, "absent_pack")
	assert.ErrorIs(t, err, types.ErrPackNotFound)

	require.NoError(t, os.MkdirAll(filepath.Join(f.packsDir, "empty_pack"), 0o755))
	_, err = f.m.Sync(ctx, "empty_pack")
	assert.ErrorIs(t, err, types.ErrInvalidManifest)

	_, err = f.m.Sync(ctx, "bad name")
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)
}

func TestSync_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writeBundle(t, f.packsDir, corePack("1.0.0"))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.m.Sync(ctx, "core_pack")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	all, err := f.catalog.ListPacks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStartup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writeBundle(t, f.packsDir, dnsPack("1.0.0"))
	writeBundle(t, f.packsDir, corePack("1.0.0"))
	writeBundle(t, f.packsDir, bundleSpec{name: "x_pack", deps: []string{"y_pack"}})
	writeBundle(t, f.packsDir, bundleSpec{name: "y_pack", deps: []string{"x_pack"}})
	f.m.now = func() time.Time { return time.Now().Add(time.Hour) }

	report, err := f.m.Startup(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"core_pack", "dns_pack"}, report.Synced)
	assert.ErrorIs(t, report.Failed["x_pack"], types.ErrDependencyCycle)
	assert.ErrorIs(t, report.Failed["y_pack"], types.ErrDependencyCycle)
	assert.Contains(t, report.Failures(), "x_pack: dependency cycle")

	for _, label := range []string{"Device", "Application", "DNS_Zone", "DNS_Record"} {
		assert.True(t, f.reg.Has(label), label)
	}

	report, err = f.m.Startup(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Synced)
	assert.Equal(t, []string{"core_pack", "dns_pack"}, report.Skipped)
	assert.True(t, f.reg.Has("DNS_Zone"), "rebuild restores types of skipped packs")
}

func TestStartup_MissingDependencyRecordedDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	writeBundle(t, f.packsDir, dnsPack("1.0.0"))

	report, err := f.m.Startup(ctx)
	require.NoError(t, err)
	var depErr *types.DependencyError
	require.ErrorAs(t, report.Failed["dns_pack"], &depErr)
	assert.Equal(t, "sync", depErr.Op)
	assert.Equal(t, []string{"core_pack"}, depErr.Missing)

	row, err := f.catalog.GetPack(ctx, "dns_pack")
	require.NoError(t, err)
	assert.False(t, row.Enabled)
	assert.False(t, f.reg.Has("DNS_Zone"))
}

func TestSync_DisabledDependency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spec := dnsPack("1.0.0")
	spec.hooks = []string{"audit_log"}
	writeBundle(t, f.packsDir, corePack("1.0.0"))
	writeBundle(t, f.packsDir, spec)
	_, err := f.m.Sync(ctx, "core_pack")
	require.NoError(t, err)
	require.NoError(t, f.m.Disable(ctx, "core_pack"))

	_, err = f.m.Sync(ctx, "dns_pack")
	require.ErrorIs(t, err, types.ErrDependencyUnsatisfied)
	assert.Contains(t, err.Error(), "cannot sync dns_pack: disabled: core_pack")
	assert.False(t, f.reg.Has("DNS_Record"))
	assert.Equal(t, 0, f.hooks.Len())

	require.NoError(t, f.m.Enable(ctx, "core_pack"))
	require.NoError(t, f.m.Enable(ctx, "dns_pack"))
	assert.True(t, f.reg.Has("DNS_Record"))
}

func TestStartup_EmptyPacksDir(t *testing.T) {
	f := newFixture(t)
	report, err := f.m.Startup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Synced)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 0, f.reg.Len())
}

func TestRebuild_RestoresAdHocTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.install(t, corePack("1.0.0"))
	require.NoError(t, f.m.RegisterType(ctx, types.TypeDefinition{
		Label:    "Rack",
		Required: []string{"name"},
	}))

	f.reg.Clear()
	require.NoError(t, f.m.Rebuild(ctx))
	assert.True(t, f.reg.Has("Device"))
	assert.True(t, f.reg.Has("Rack"))
	assert.Equal(t, []string{"name"}, f.reg.GetMetadata("Rack").PropertyNames())
	_, fromPack := f.reg.PackForType("Rack")
	assert.False(t, fromPack)

	require.NoError(t, f.m.UnregisterType(ctx, "Rack"))
	assert.False(t, f.reg.Has("Rack"))
	require.NoError(t, f.m.Rebuild(ctx))
	assert.False(t, f.reg.Has("Rack"))

	assert.ErrorIs(t, f.m.RegisterType(ctx, types.TypeDefinition{Label: "Bad Label"}), types.ErrInvalidIdentifier)
	assert.ErrorIs(t, f.m.UnregisterType(ctx, "Bad`Label"), types.ErrInvalidIdentifier)
}
