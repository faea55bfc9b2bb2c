package types

import (
	"context"
	"slices"
	"time"
)

// FeaturePack is the persisted catalog row for an installed pack.
type FeaturePack struct {
	Name          string       `json:"name"`
	DisplayName   string       `json:"display_name"`
	Enabled       bool         `json:"enabled"`
	SourcePath    string       `json:"source_path"`
	Version       string       `json:"version"`
	Dependencies  []string     `json:"dependencies"`
	ProvidedTypes []string     `json:"provided_types"`
	Manifest      PackManifest `json:"manifest"`
	LastModified  time.Time    `json:"last_modified"`
	LastSynced    time.Time    `json:"last_synced"`
}

// DependsOn reports whether the pack declares name as a dependency.
func (p FeaturePack) DependsOn(name string) bool {
	return slices.Contains(p.Dependencies, name)
}

// Label returns the display name, falling back to the pack name.
func (p FeaturePack) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// PackManifest is the declarative part of a pack bundle (pack.yaml,
// pack.toml or pack.json).
type PackManifest struct {
	Name            string   `json:"name" yaml:"name" toml:"name" validate:"required,packname"`
	DisplayName     string   `json:"display_name,omitempty" yaml:"display_name,omitempty" toml:"display_name,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Version         string   `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty" validate:"omitempty,version"`
	Dependencies    []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty" validate:"dive,packname"`
	AppliesToLabels []string `json:"applies_to_labels,omitempty" yaml:"applies_to_labels,omitempty" toml:"applies_to_labels,omitempty" validate:"dive,label"`
	Tabs            []Tab    `json:"tabs,omitempty" yaml:"tabs,omitempty" toml:"tabs,omitempty" validate:"dive"`
	Hooks           []string `json:"hooks,omitempty" yaml:"hooks,omitempty" toml:"hooks,omitempty"`
}

// Tab is a detail-view extension contributed by a pack for some labels.
type Tab struct {
	ID        string   `json:"id" yaml:"id" toml:"id" validate:"required"`
	Name      string   `json:"name" yaml:"name" toml:"name" validate:"required"`
	Template  string   `json:"template,omitempty" yaml:"template,omitempty" toml:"template,omitempty"`
	ForLabels []string `json:"for_labels,omitempty" yaml:"for_labels,omitempty" toml:"for_labels,omitempty" validate:"dive,label"`
	Pack      string   `json:"pack,omitempty" yaml:"-" toml:"-"`
}

// CatalogType is the persisted record of one type definition. Pack is empty
// for ad-hoc registrations.
type CatalogType struct {
	Label      string         `json:"label"`
	Pack       string         `json:"pack"`
	Definition TypeDefinition `json:"definition"`
	Enabled    bool           `json:"enabled"`
	LastSynced time.Time      `json:"last_synced"`
}

// Catalog persists feature packs and type definitions so the in-memory
// registry can be rebuilt on restart. Implementations return
// ErrPackNotFound for unknown pack names.
type Catalog interface {
	GetPack(ctx context.Context, name string) (*FeaturePack, error)
	ListPacks(ctx context.Context) ([]FeaturePack, error)

	// UpsertPack writes the pack row and replaces its type rows with defs
	// in one transaction. Type rows inherit the pack's enabled flag.
	UpsertPack(ctx context.Context, pack FeaturePack, defs []TypeDefinition) error

	// SetPackEnabled flips the pack row and the enabled flag of its types.
	SetPackEnabled(ctx context.Context, name string, enabled bool) error

	// DeletePack removes the pack row and its type rows.
	DeletePack(ctx context.Context, name string) error

	ListTypes(ctx context.Context, enabledOnly bool) ([]CatalogType, error)
	UpsertType(ctx context.Context, def TypeDefinition, pack string, enabled bool) error
	DeleteType(ctx context.Context, label string) error
}
