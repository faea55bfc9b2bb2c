package packs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Install statuses.
const (
	StatusInstalled = "installed"
	StatusUpgraded  = "upgraded"
	StatusUpToDate  = "up_to_date"
	StatusOutdated  = "outdated"
)

// InstallResult describes the outcome of Install.
type InstallResult struct {
	Pack            string   `json:"pack"`
	Status          string   `json:"status"`
	Version         string   `json:"version"`
	PreviousVersion string   `json:"previous_version,omitempty"`
	Types           []string `json:"types"`
}

// Install resolves the bundle for name, checks its dependencies, copies it
// into the packs directory and records it in the catalog. A newer bundle
// upgrades an installed pack in place and keeps its enabled flag. A bundle
// with the same or an older version leaves everything untouched.
func (m *Manager) Install(ctx context.Context, name string) (res *InstallResult, err error) {
	ctx, end := m.begin(ctx, "install", name)
	defer func() { end(&err) }()

	if err := types.ValidatePackName(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bundle, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	existing, err := m.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	res = &InstallResult{Pack: name, Version: bundle.Manifest.Version, Types: bundle.Labels()}
	if existing != nil {
		res.PreviousVersion = existing.Version
		switch cmp := types.CompareVersions(bundle.Manifest.Version, existing.Version); {
		case cmp == 0:
			res.Status = StatusUpToDate
			return res, nil
		case cmp < 0:
			res.Status = StatusOutdated
			return res, nil
		}
	}

	if err := m.checkDependencies(ctx, name, "install", bundle.Manifest.Dependencies); err != nil {
		return nil, err
	}

	installed, err := m.materialize(bundle)
	if err != nil {
		return nil, err
	}

	enabled := existing == nil || existing.Enabled
	pack := m.packRow(installed, enabled)
	if err := m.catalog.UpsertPack(ctx, pack, installed.Types); err != nil {
		return nil, fmt.Errorf("install pack %s: %w", name, err)
	}

	m.unregisterTypes(name)
	if enabled {
		m.registerTypes(name, installed.Types)
		m.registerHooks(pack)
	}

	res.Status = StatusInstalled
	if existing != nil {
		res.Status = StatusUpgraded
	}
	m.log.Info().Str("pack", name).Str("version", res.Version).Str("status", res.Status).
		Int("types", len(installed.Types)).Msg("pack installed")
	return res, nil
}

// Enable marks an installed pack enabled and registers its types and hooks.
// It fails while any dependency is missing or disabled.
func (m *Manager) Enable(ctx context.Context, name string) (err error) {
	ctx, end := m.begin(ctx, "enable", name)
	defer func() { end(&err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.catalog.GetPack(ctx, name)
	if err != nil {
		return err
	}
	if err := m.checkDependencies(ctx, name, "enable", p.Dependencies); err != nil {
		return err
	}
	if err := m.catalog.SetPackEnabled(ctx, name, true); err != nil {
		return fmt.Errorf("enable pack %s: %w", name, err)
	}

	rows, err := m.catalog.ListTypes(ctx, true)
	if err != nil {
		return fmt.Errorf("list types: %w", err)
	}
	var defs []types.TypeDefinition
	for _, row := range rows {
		if row.Pack == name {
			defs = append(defs, row.Definition)
		}
	}
	m.registerTypes(name, defs)
	p.Enabled = true
	m.registerHooks(*p)

	m.log.Info().Str("pack", name).Int("types", len(defs)).Msg("pack enabled")
	return nil
}

// Disable marks a pack disabled and drops its types and hooks. It fails
// while another enabled pack depends on it.
func (m *Manager) Disable(ctx context.Context, name string) (err error) {
	ctx, end := m.begin(ctx, "disable", name)
	defer func() { end(&err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.catalog.GetPack(ctx, name); err != nil {
		return err
	}
	if err := m.checkDependents(ctx, name, "disable", true); err != nil {
		return err
	}
	if err := m.catalog.SetPackEnabled(ctx, name, false); err != nil {
		return fmt.Errorf("disable pack %s: %w", name, err)
	}
	m.unregisterTypes(name)
	m.hooks.RemoveOwner(name)

	m.log.Info().Str("pack", name).Msg("pack disabled")
	return nil
}

// Remove deletes an installed pack: its catalog rows, its types, its hooks
// and then its bundle files. It fails while any installed pack depends on it,
// enabled or not.
func (m *Manager) Remove(ctx context.Context, name string) (err error) {
	ctx, end := m.begin(ctx, "remove", name)
	defer func() { end(&err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.catalog.GetPack(ctx, name); err != nil {
		return err
	}
	if err := m.checkDependents(ctx, name, "remove", false); err != nil {
		return err
	}
	if err := m.catalog.DeletePack(ctx, name); err != nil {
		return fmt.Errorf("remove pack %s: %w", name, err)
	}
	m.unregisterTypes(name)
	m.hooks.RemoveOwner(name)
	if m.packsDir != "" {
		dir := filepath.Join(m.packsDir, name)
		if err := os.RemoveAll(dir); err != nil {
			m.log.Error().Err(err).Str("pack", name).Str("dir", dir).
				Msg("pack removed from catalog but bundle files remain")
			return fmt.Errorf("remove bundle %s: %w", name, err)
		}
	}

	m.log.Info().Str("pack", name).Msg("pack removed")
	return nil
}

// checkDependencies fails with a DependencyError naming every dependency
// that is not installed or not enabled.
func (m *Manager) checkDependencies(ctx context.Context, name, op string, deps []string) error {
	var missing, disabled []string
	for _, dep := range deps {
		p, err := m.lookup(ctx, dep)
		if err != nil {
			return err
		}
		switch {
		case p == nil:
			missing = append(missing, dep)
		case !p.Enabled:
			disabled = append(disabled, dep)
		}
	}
	if len(missing) == 0 && len(disabled) == 0 {
		return nil
	}
	return &types.DependencyError{Pack: name, Op: op, Missing: missing, Disabled: disabled}
}

// checkDependents fails with a DependentsError naming the packs that
// depend on name. With enabledOnly, disabled dependents do not block.
func (m *Manager) checkDependents(ctx context.Context, name, op string, enabledOnly bool) error {
	all, err := m.catalog.ListPacks(ctx)
	if err != nil {
		return fmt.Errorf("list packs: %w", err)
	}
	var blocking []string
	for _, p := range all {
		if p.Name == name || !p.DependsOn(name) {
			continue
		}
		if enabledOnly && !p.Enabled {
			continue
		}
		blocking = append(blocking, p.Label())
	}
	if len(blocking) == 0 {
		return nil
	}
	return &types.DependentsError{Pack: name, Op: op, Dependents: blocking}
}

// resolve finds the bundle to install, preferring the store directory over
// an already installed copy.
func (m *Manager) resolve(name string) (*Bundle, error) {
	for _, root := range []string{m.storeDir, m.packsDir} {
		if root == "" {
			continue
		}
		dir := filepath.Join(root, name)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("stat bundle %s: %w", dir, err)
		}
		return loadNamedBundle(dir, name)
	}
	return nil, fmt.Errorf("%w: no bundle for %q", types.ErrPackNotFound, name)
}

// materialize copies b into the packs directory unless it already lives
// there, and returns the installed bundle.
func (m *Manager) materialize(b *Bundle) (*Bundle, error) {
	if m.packsDir == "" {
		return b, nil
	}
	dst := filepath.Join(m.packsDir, b.Name())
	same, err := sameDir(b.Dir, dst)
	if err != nil {
		return nil, err
	}
	if same {
		return b, nil
	}
	if err := replaceDir(b.Dir, dst); err != nil {
		return nil, fmt.Errorf("materialize %s: %w", b.Name(), err)
	}
	installed := *b
	installed.Dir = dst
	return &installed, nil
}

// packRow builds the catalog row for b.
func (m *Manager) packRow(b *Bundle, enabled bool) types.FeaturePack {
	deps := slices.Clone(b.Manifest.Dependencies)
	if deps == nil {
		deps = []string{}
	}
	return types.FeaturePack{
		Name:          b.Name(),
		DisplayName:   b.Manifest.DisplayName,
		Enabled:       enabled,
		SourcePath:    b.Dir,
		Version:       b.Manifest.Version,
		Dependencies:  deps,
		ProvidedTypes: b.Labels(),
		Manifest:      b.Manifest,
		LastModified:  b.ModTime,
		LastSynced:    m.now(),
	}
}
