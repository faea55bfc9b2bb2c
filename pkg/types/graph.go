package types

import "context"

// Node is a graph node as stored: one label and an opaque serialized
// property map.
type Node struct {
	ID         string
	Label      string
	Properties []byte
}

// Edge is a relationship seen from one endpoint. NodeID, NodeLabel and
// NodeProperties describe the opposite endpoint.
type Edge struct {
	RelType        string
	NodeID         string
	NodeLabel      string
	NodeProperties []byte
}

// GraphStore is the parameterized interface to a property-graph backend.
// Label and relType arguments must already have passed ValidateLabel and
// ValidateRelationshipType; ids and property blobs are bound values.
// Implementations return ErrNotFound for missing nodes and wrap backend
// failures with ErrStoreUnavailable.
type GraphStore interface {
	FindByLabelAndID(ctx context.Context, label, id string) (*Node, error)
	CreateNode(ctx context.Context, label string, properties []byte) (string, error)
	UpdateNode(ctx context.Context, label, id string, properties []byte) error
	DeleteNode(ctx context.Context, label, id string) error
	ListByLabel(ctx context.Context, label string, limit, offset int) ([]Node, error)
	CountByLabel(ctx context.Context, label string) (int, error)

	// MergeEdge creates the edge if absent. Returns ErrNotFound if either
	// endpoint does not exist under its label.
	MergeEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) error

	// DeleteEdge removes at most one matching edge and reports how many
	// were removed.
	DeleteEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) (int, error)

	OutgoingEdges(ctx context.Context, label, id string) ([]Edge, error)
	IncomingEdges(ctx context.Context, label, id string) ([]Edge, error)

	Close() error
}
