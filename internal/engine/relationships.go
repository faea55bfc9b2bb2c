package engine

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Connect creates the relType edge from source to target if it does not
// exist yet. When the source type declares relationships, relType must be
// one of them and the target label must match the declared target. A type
// that declares none accepts any well-formed relationship type.
func (e *Engine) Connect(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) (err error) {
	ctx, end := e.begin(ctx, "connect", sourceLabel)
	defer end(&err)

	if err := e.checkEdge(sourceLabel, relType, targetLabel); err != nil {
		return err
	}
	if err := e.checkAllowed(sourceLabel, relType, targetLabel); err != nil {
		return err
	}
	if err := e.store.MergeEdge(ctx, sourceLabel, sourceID, relType, targetLabel, targetID); err != nil {
		return fmt.Errorf("connect %s -[%s]-> %s: %w", sourceLabel, relType, targetLabel, err)
	}

	e.emit(ctx, hooks.Event{
		Action:   hooks.ActionConnect,
		Label:    sourceLabel,
		NodeID:   sourceID,
		NodeName: e.nameOf(ctx, sourceLabel, sourceID),
		Details:  hooks.RelationDetails("Connected", relType, targetLabel, e.nameOf(ctx, targetLabel, targetID)),
	})
	return nil
}

// Disconnect deletes at most one relType edge from source to target and
// returns the number deleted. Deleting nothing is ErrRelationshipNotFound.
func (e *Engine) Disconnect(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) (_ int, err error) {
	ctx, end := e.begin(ctx, "disconnect", sourceLabel)
	defer end(&err)

	if err := e.checkEdge(sourceLabel, relType, targetLabel); err != nil {
		return 0, err
	}
	n, err := e.store.DeleteEdge(ctx, sourceLabel, sourceID, relType, targetLabel, targetID)
	if err != nil {
		return 0, fmt.Errorf("disconnect %s -[%s]-> %s: %w", sourceLabel, relType, targetLabel, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s %s -[%s]-> %s %s",
			types.ErrRelationshipNotFound, sourceLabel, sourceID, relType, targetLabel, targetID)
	}

	e.emit(ctx, hooks.Event{
		Action:   hooks.ActionDisconnect,
		Label:    sourceLabel,
		NodeID:   sourceID,
		NodeName: e.nameOf(ctx, sourceLabel, sourceID),
		Details:  hooks.RelationDetails("Disconnected", relType, targetLabel, e.nameOf(ctx, targetLabel, targetID)),
	})
	return n, nil
}

// OutgoingRelationships groups the edges leaving an entity by type.
func (e *Engine) OutgoingRelationships(ctx context.Context, label, id string) (_ map[string][]types.Related, err error) {
	ctx, end := e.begin(ctx, "outgoing", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	if _, err := e.store.FindByLabelAndID(ctx, label, id); err != nil {
		return nil, fmt.Errorf("outgoing %s %s: %w", label, id, err)
	}
	edges, err := e.store.OutgoingEdges(ctx, label, id)
	if err != nil {
		return nil, fmt.Errorf("outgoing %s %s: %w", label, id, err)
	}
	return groupEdges(edges), nil
}

// IncomingRelationships groups the edges arriving at an entity by type.
func (e *Engine) IncomingRelationships(ctx context.Context, label, id string) (_ map[string][]types.Related, err error) {
	ctx, end := e.begin(ctx, "incoming", label)
	defer end(&err)

	if err := e.checkLabel(label); err != nil {
		return nil, err
	}
	if _, err := e.store.FindByLabelAndID(ctx, label, id); err != nil {
		return nil, fmt.Errorf("incoming %s %s: %w", label, id, err)
	}
	edges, err := e.store.IncomingEdges(ctx, label, id)
	if err != nil {
		return nil, fmt.Errorf("incoming %s %s: %w", label, id, err)
	}
	return groupEdges(edges), nil
}

func (e *Engine) checkEdge(sourceLabel, relType, targetLabel string) error {
	if err := e.checkLabel(sourceLabel); err != nil {
		return err
	}
	if err := types.ValidateRelationshipType(relType); err != nil {
		return err
	}
	return e.checkLabel(targetLabel)
}

func (e *Engine) checkAllowed(sourceLabel, relType, targetLabel string) error {
	declared := e.registry.GetMetadata(sourceLabel).Relationships
	if len(declared) == 0 {
		return nil
	}
	spec, ok := declared[relType]
	if !ok {
		return fmt.Errorf("%w: %s does not declare %s", types.ErrRelationshipNotAllowed, sourceLabel, relType)
	}
	if spec.Target != "" && spec.Target != targetLabel {
		return fmt.Errorf("%w: %s %s targets %s, not %s",
			types.ErrRelationshipNotAllowed, sourceLabel, relType, spec.Target, targetLabel)
	}
	return nil
}

// nameOf looks up an entity's display name for event details. Lookup
// failures fall back to the truncated id.
func (e *Engine) nameOf(ctx context.Context, label, id string) string {
	node, err := e.store.FindByLabelAndID(ctx, label, id)
	if err != nil {
		return types.DisplayName(id, nil)
	}
	props, err := decodeProps(node.Properties)
	if err != nil {
		return types.DisplayName(id, nil)
	}
	return types.DisplayName(id, props)
}

func groupEdges(edges []types.Edge) map[string][]types.Related {
	out := make(map[string][]types.Related)
	for _, edge := range edges {
		props, err := decodeProps(edge.NodeProperties)
		if err != nil {
			props = nil
		}
		out[edge.RelType] = append(out[edge.RelType], types.Related{
			ID:          edge.NodeID,
			Label:       edge.NodeLabel,
			DisplayName: types.DisplayName(edge.NodeID, props),
		})
	}
	return out
}
