// Package registry holds the in-memory catalog of runtime entity types.
//
// The registry never fails: lookups of unknown labels degrade to a synthetic
// default definition so presentation layers keep rendering. Callers that need
// to distinguish unknown labels use Has or KnownLabels.
package registry

import (
	"sort"
	"sync"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// defaultDescription is shown for labels that were never registered.
const defaultDescription = "No description"

// Registry maps type labels to their definitions. It is safe for concurrent
// use; every read returns a copy.
type Registry struct {
	mu    sync.RWMutex
	types map[string]types.TypeDefinition
	packs map[string]string // label -> origin pack
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		types: make(map[string]types.TypeDefinition),
		packs: make(map[string]string),
	}
}

// Register stores def under label, replacing any previous definition. The
// last write wins. originPack may be empty for ad-hoc registrations; a
// non-empty originPack replaces any previous pack association.
func (r *Registry) Register(label string, def types.TypeDefinition, originPack string) {
	def = def.Clone()
	def.Label = label
	def.OriginPack = originPack

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[label] = def
	if originPack != "" {
		r.packs[label] = originPack
	} else {
		delete(r.packs, label)
	}
}

// Unregister removes label. Idempotent.
func (r *Registry) Unregister(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, label)
	delete(r.packs, label)
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]types.TypeDefinition)
	r.packs = make(map[string]string)
}

// Has reports whether label is registered.
func (r *Registry) Has(label string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[label]
	return ok
}

// GetMetadata returns the definition for label with defaults filled in. An
// unknown label yields a synthetic record with the label as display name.
func (r *Registry) GetMetadata(label string) types.TypeDefinition {
	r.mu.RLock()
	def, ok := r.types[label]
	r.mu.RUnlock()
	if !ok {
		def = types.TypeDefinition{
			Label:       label,
			DisplayName: label,
			Description: defaultDescription,
		}
	}
	return def.WithDefaults()
}

// KnownLabels returns all registered labels in sorted order.
func (r *Registry) KnownLabels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.types))
	for label := range r.types {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Categories groups the registered labels by category. Labels without a
// category fall under types.DefaultCategory. Labels within a category are
// sorted.
func (r *Registry) Categories() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string)
	for label, def := range r.types {
		cat := def.Category
		if cat == "" {
			cat = types.DefaultCategory
		}
		out[cat] = append(out[cat], label)
	}
	for _, labels := range out {
		sort.Strings(labels)
	}
	return out
}

// TypesForPack returns the labels registered by pack, sorted.
func (r *Registry) TypesForPack(pack string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var labels []string
	for label, p := range r.packs {
		if p == pack {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// PackForType returns the pack that registered label, if any.
func (r *Registry) PackForType(label string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packs[label]
	return p, ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
