package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Create validates required properties and stores a new entity. Missing
// keys are reported together, in the order the type declares them.
func (e *Engine) Create(ctx context.Context, label string, props map[string]any) (_ *types.Entity, err error) {
	ctx, end := e.begin(ctx, "create", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	def := e.registry.GetMetadata(label)
	if missing := missingRequired(def.Required, props); len(missing) > 0 {
		return nil, &types.MissingPropertiesError{Label: label, Missing: missing}
	}

	blob, stored, err := encodeProps(props)
	if err != nil {
		return nil, err
	}
	id, err := e.store.CreateNode(ctx, label, blob)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	e.invalidateCount(label)

	e.emit(ctx, hooks.Event{
		Action:   hooks.ActionCreate,
		Label:    label,
		NodeID:   id,
		NodeName: types.DisplayName(id, stored),
		Details:  hooks.CreatedDetails(stored),
	})
	return &types.Entity{ID: id, Label: label, Properties: stored}, nil
}

// Get returns the entity with id under label.
func (e *Engine) Get(ctx context.Context, label, id string) (_ *types.Entity, err error) {
	ctx, end := e.begin(ctx, "get", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	return e.load(ctx, label, id)
}

// List returns one page of entities. The limit is clamped to the engine's
// maximum; a non-positive limit selects the default page size.
func (e *Engine) List(ctx context.Context, label string, limit, offset int) (_ []types.Entity, err error) {
	ctx, end := e.begin(ctx, "list", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	limit, offset = e.clampLimit(limit, offset)
	nodes, err := e.store.ListByLabel(ctx, label, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", label, err)
	}
	out := make([]types.Entity, 0, len(nodes))
	for _, n := range nodes {
		props, err := decodeProps(n.Properties)
		if err != nil {
			return nil, fmt.Errorf("list %s: node %s: %w", label, n.ID, err)
		}
		out = append(out, types.Entity{ID: n.ID, Label: label, Properties: props})
	}
	return out, nil
}

// Update shallow-merges partial into the stored properties. Keys in partial
// overwrite, other keys are kept. There is no way to delete a key here.
func (e *Engine) Update(ctx context.Context, label, id string, partial map[string]any) (_ *types.Entity, err error) {
	ctx, end := e.begin(ctx, "update", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	current, err := e.load(ctx, label, id)
	if err != nil {
		return nil, err
	}

	_, patch, err := encodeProps(partial)
	if err != nil {
		return nil, err
	}
	merged := current.GetProperties()
	maps.Copy(merged, patch)

	blob, merged, err := encodeProps(merged)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateNode(ctx, label, id, blob); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", label, id, err)
	}

	e.emit(ctx, hooks.Event{
		Action:   hooks.ActionUpdate,
		Label:    label,
		NodeID:   id,
		NodeName: types.DisplayName(id, merged),
		Changes:  hooks.Diff(current.Properties, patch),
	})
	return &types.Entity{ID: id, Label: label, Properties: merged}, nil
}

// Delete removes the entity. Its display name is captured first, since the
// node is gone afterwards. Attached relationships are removed by the store.
func (e *Engine) Delete(ctx context.Context, label, id string) (_ *types.DeleteResult, err error) {
	ctx, end := e.begin(ctx, "delete", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	current, err := e.load(ctx, label, id)
	if err != nil {
		return nil, err
	}
	name := deletedName(id, current.Properties)

	if err := e.store.DeleteNode(ctx, label, id); err != nil {
		return nil, fmt.Errorf("delete %s %s: %w", label, id, err)
	}
	e.invalidateCount(label)

	e.emit(ctx, hooks.Event{
		Action:   hooks.ActionDelete,
		Label:    label,
		NodeID:   id,
		NodeName: name,
		Details:  "Deleted " + name,
	})
	return &types.DeleteResult{ID: id, Label: label, DisplayName: name}, nil
}

// Count returns the number of entities under label.
func (e *Engine) Count(ctx context.Context, label string) (_ int, err error) {
	ctx, end := e.begin(ctx, "count", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return 0, err
	}
	n, err := e.store.CountByLabel(ctx, label)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", label, err)
	}
	return n, nil
}

func (e *Engine) load(ctx context.Context, label, id string) (*types.Entity, error) {
	node, err := e.store.FindByLabelAndID(ctx, label, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", label, id, err)
	}
	props, err := decodeProps(node.Properties)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", label, id, err)
	}
	return &types.Entity{ID: node.ID, Label: label, Properties: props}, nil
}

// missingRequired lists required keys absent from props. A key that is
// present counts even when its value is empty.
func missingRequired(required []string, props map[string]any) []string {
	var missing []string
	for _, key := range required {
		if _, ok := props[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// encodeProps serializes props and returns the map as it will read back
// from the store, so callers see the same values Get would return.
func encodeProps(props map[string]any) ([]byte, map[string]any, error) {
	if props == nil {
		props = map[string]any{}
	}
	blob, err := json.Marshal(props)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", types.ErrInvalidPayload, err)
	}
	stored, err := decodeProps(blob)
	if err != nil {
		return nil, nil, err
	}
	return blob, stored, nil
}

func decodeProps(blob []byte) (map[string]any, error) {
	props := map[string]any{}
	if len(blob) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(blob, &props); err != nil {
		return nil, fmt.Errorf("%w: stored properties: %w", types.ErrInvalidPayload, err)
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}

// deletedName is the value reported for a deleted entity: its name, else
// the first 8 characters of its id.
func deletedName(id string, props map[string]any) string {
	if v, ok := props["name"]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return types.TruncateID(id, 8)
}
