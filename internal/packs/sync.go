package packs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// ShouldSync reports whether bundle b has changed since pack p was last
// synced. A pack missing from the catalog always needs a sync.
func ShouldSync(b *Bundle, p *types.FeaturePack) bool {
	if p == nil {
		return true
	}
	return b.ModTime.After(p.LastSynced)
}

// Sync upserts the catalog row and type definitions of the installed bundle
// name when the bundle is newer than the last sync. It reports whether a
// write happened. A pack seen for the first time is recorded enabled when
// its dependencies are installed and enabled; otherwise it is recorded
// disabled and the DependencyError is returned. Concurrent syncs of the same
// pack share one run.
func (m *Manager) Sync(ctx context.Context, name string) (bool, error) {
	if err := types.ValidatePackName(name); err != nil {
		return false, err
	}
	v, err, _ := m.sf.Do(name, func() (any, error) {
		dir := filepath.Join(m.packsDir, name)
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: no bundle for %q in %s", types.ErrPackNotFound, name, m.packsDir)
		}
		b, err := loadNamedBundle(dir, name)
		if err != nil {
			return false, err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.syncBundle(ctx, b)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (m *Manager) syncBundle(ctx context.Context, b *Bundle) (synced bool, err error) {
	ctx, end := m.begin(ctx, "sync", b.Name())
	defer func() { end(&err) }()

	existing, err := m.lookup(ctx, b.Name())
	if err != nil {
		return false, err
	}
	if !ShouldSync(b, existing) {
		m.log.Debug().Str("pack", b.Name()).Msg("pack up to date, sync skipped")
		return false, nil
	}

	enabled := existing == nil || existing.Enabled
	var depErr error
	if enabled {
		depErr = m.checkDependencies(ctx, b.Name(), "sync", b.Manifest.Dependencies)
		var de *types.DependencyError
		if depErr != nil && !errors.As(depErr, &de) {
			return false, depErr
		}
		enabled = depErr == nil
	}

	pack := m.packRow(b, enabled)
	if err := m.catalog.UpsertPack(ctx, pack, b.Types); err != nil {
		return false, fmt.Errorf("sync pack %s: %w", b.Name(), err)
	}
	m.unregisterTypes(b.Name())
	if !enabled {
		m.hooks.RemoveOwner(b.Name())
	}
	if depErr != nil {
		m.log.Warn().Err(depErr).Str("pack", b.Name()).Msg("pack recorded disabled")
		return true, depErr
	}
	if enabled {
		m.registerTypes(b.Name(), b.Types)
		m.registerHooks(pack)
	}
	m.log.Info().Str("pack", b.Name()).Str("version", b.Manifest.Version).
		Int("types", len(b.Types)).Msg("pack synced")
	return true, nil
}

// StartupReport summarizes one startup scan.
type StartupReport struct {
	Synced  []string
	Skipped []string
	Failed  map[string]error
}

// Startup scans the packs directory once: it loads every bundle, syncs the
// stale ones in dependency order, then rebuilds the registry and hooks from
// the catalog. Bundles that fail to load or sit on a dependency cycle are
// reported and skipped; they do not stop the scan.
func (m *Manager) Startup(ctx context.Context) (*StartupReport, error) {
	report := &StartupReport{Failed: map[string]error{}}

	bundles, err := Discover(m.packsDir)
	if err != nil {
		m.log.Warn().Err(err).Str("dir", m.packsDir).Msg("some bundles failed to load")
		report.Failed["_discover"] = err
	}
	ordered, err := InstallOrder(bundles)
	if err != nil {
		m.log.Warn().Err(err).Msg("skipping packs on a dependency cycle")
		for _, b := range bundles {
			if !containsBundle(ordered, b.Name()) {
				report.Failed[b.Name()] = err
			}
		}
	}

	m.mu.Lock()
	for _, b := range ordered {
		synced, err := m.syncBundle(ctx, b)
		switch {
		case err != nil:
			m.log.Warn().Err(err).Str("pack", b.Name()).Msg("pack sync failed")
			report.Failed[b.Name()] = err
		case synced:
			report.Synced = append(report.Synced, b.Name())
		default:
			report.Skipped = append(report.Skipped, b.Name())
		}
	}
	m.mu.Unlock()

	if err := m.Rebuild(ctx); err != nil {
		return report, err
	}
	m.log.Info().Int("synced", len(report.Synced)).Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failed)).Msg("pack startup scan complete")
	return report, nil
}

// Rebuild clears the registry and reloads it from the enabled catalog
// types, then re-registers the hooks of enabled packs.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.catalog.ListTypes(ctx, true)
	if err != nil {
		return fmt.Errorf("rebuild registry: %w", err)
	}
	all, err := m.catalog.ListPacks(ctx)
	if err != nil {
		return fmt.Errorf("rebuild registry: %w", err)
	}

	m.registry.Clear()
	for _, row := range rows {
		m.registry.Register(row.Label, row.Definition, row.Pack)
	}
	for _, p := range all {
		m.hooks.RemoveOwner(p.Name)
		if p.Enabled {
			m.registerHooks(p)
		}
	}
	m.metrics.SetRegisteredTypes(m.registry.Len())
	return nil
}

func containsBundle(bundles []*Bundle, name string) bool {
	for _, b := range bundles {
		if b.Name() == name {
			return true
		}
	}
	return false
}

// Failures renders the failed entries of r, sorted by pack name.
func (r *StartupReport) Failures() string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = name + ": " + r.Failed[name].Error()
	}
	return strings.Join(lines, "\n")
}

// ensureDir creates dir if it is set and missing.
func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
