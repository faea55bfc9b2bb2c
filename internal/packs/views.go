package packs

import (
	"context"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// PackInfo is a catalog row with the names of the installed packs that
// depend on it.
type PackInfo struct {
	types.FeaturePack
	TypeCount  int      `json:"type_count"`
	Dependents []string `json:"dependents"`
}

// Packs lists installed packs by name.
func (m *Manager) Packs(ctx context.Context) ([]PackInfo, error) {
	all, err := m.catalog.ListPacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	infos := make([]PackInfo, len(all))
	for i, p := range all {
		infos[i] = PackInfo{FeaturePack: p, TypeCount: len(p.ProvidedTypes), Dependents: []string{}}
		for _, other := range all {
			if other.Name != p.Name && other.DependsOn(p.Name) {
				infos[i].Dependents = append(infos[i].Dependents, other.Label())
			}
		}
	}
	return infos, nil
}

// Available lists the bundles in the store directory.
func (m *Manager) Available() ([]*Bundle, error) {
	return Discover(m.storeDir)
}

// Tabs returns the detail-view tabs enabled packs contribute for label,
// ordered by pack name and then declaration order. A tab without
// for_labels follows its pack's applies_to_labels; when both are empty it
// applies to every label.
func (m *Manager) Tabs(ctx context.Context, label string) ([]types.Tab, error) {
	if err := types.ValidateLabel(label); err != nil {
		return nil, err
	}
	all, err := m.catalog.ListPacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	tabs := []types.Tab{}
	for _, p := range all {
		if !p.Enabled {
			continue
		}
		for _, tab := range p.Manifest.Tabs {
			scope := tab.ForLabels
			if len(scope) == 0 {
				scope = p.Manifest.AppliesToLabels
			}
			if len(scope) > 0 && !slices.Contains(scope, label) {
				continue
			}
			tab.Pack = p.Name
			tabs = append(tabs, tab)
		}
	}
	return tabs, nil
}

// RegisterType registers an ad-hoc type that belongs to no pack and
// persists it so Rebuild restores it.
func (m *Manager) RegisterType(ctx context.Context, def types.TypeDefinition) (err error) {
	ctx, end := m.begin(ctx, "register_type", "")
	defer func() { end(&err) }()

	def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	def.OriginPack = ""
	if err := m.catalog.UpsertType(ctx, def, "", true); err != nil {
		return fmt.Errorf("register type %s: %w", def.Label, err)
	}
	m.registry.Register(def.Label, def, "")
	m.metrics.SetRegisteredTypes(m.registry.Len())
	m.log.Info().Str("label", def.Label).Msg("type registered")
	return nil
}

// UnregisterType removes a type from the registry and the catalog.
func (m *Manager) UnregisterType(ctx context.Context, label string) (err error) {
	ctx, end := m.begin(ctx, "unregister_type", "")
	defer func() { end(&err) }()

	if err := types.ValidateLabel(label); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.catalog.DeleteType(ctx, label); err != nil {
		return fmt.Errorf("unregister type %s: %w", label, err)
	}
	m.registry.Unregister(label)
	m.metrics.SetRegisteredTypes(m.registry.Len())
	m.log.Info().Str("label", label).Msg("type unregistered")
	return nil
}
