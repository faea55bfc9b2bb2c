// Package neo4j implements the graph store on a Neo4j server.
//
// Each entity is a node with one label and a custom_properties string
// holding the JSON property map. Node ids are Neo4j element ids.
package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

var _ types.GraphStore = (*Store)(nil)

// Store is a GraphStore backed by a Neo4j driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Open connects to the server described by cfg and verifies connectivity.
func Open(ctx context.Context, cfg types.Neo4jConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: neo4j uri is empty", types.ErrInvalidConfig)
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w: %w", types.ErrStoreUnavailable, err)
	}
	return &Store{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver.
func (s *Store) Close() error {
	if err := s.driver.Close(context.Background()); err != nil {
		return fmt.Errorf("close neo4j driver: %w", err)
	}
	return nil
}

func (s *Store) run(ctx context.Context, mode neo4j.AccessMode, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return records, nil
}

// FindByLabelAndID returns the node or ErrNotFound.
func (s *Store) FindByLabelAndID(ctx context.Context, label, id string) (*types.Node, error) {
	q, err := findQuery(label)
	if err != nil {
		return nil, err
	}
	records, err := s.run(ctx, neo4j.AccessModeRead, "find node", q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, types.ErrNotFound
	}
	return &types.Node{
		ID:         stringValue(records[0], "id"),
		Label:      label,
		Properties: []byte(stringValue(records[0], "props")),
	}, nil
}

// CreateNode creates a node and returns its element id.
func (s *Store) CreateNode(ctx context.Context, label string, properties []byte) (string, error) {
	q, err := createQuery(label)
	if err != nil {
		return "", err
	}
	records, err := s.run(ctx, neo4j.AccessModeWrite, "create node", q, map[string]any{"props": string(properties)})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("create node: no id returned: %w", types.ErrStoreUnavailable)
	}
	return stringValue(records[0], "id"), nil
}

// UpdateNode replaces the serialized property map.
func (s *Store) UpdateNode(ctx context.Context, label, id string, properties []byte) error {
	q, err := updateQuery(label)
	if err != nil {
		return err
	}
	records, err := s.run(ctx, neo4j.AccessModeWrite, "update node", q, map[string]any{"id": id, "props": string(properties)})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteNode detaches and deletes the node.
func (s *Store) DeleteNode(ctx context.Context, label, id string) error {
	q, err := deleteQuery(label)
	if err != nil {
		return err
	}
	records, err := s.run(ctx, neo4j.AccessModeWrite, "delete node", q, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return types.ErrNotFound
	}
	return nil
}

// ListByLabel returns one page of nodes.
func (s *Store) ListByLabel(ctx context.Context, label string, limit, offset int) ([]types.Node, error) {
	q, err := listQuery(label)
	if err != nil {
		return nil, err
	}
	records, err := s.run(ctx, neo4j.AccessModeRead, "list nodes", q,
		map[string]any{"limit": int64(limit), "offset": int64(offset)})
	if err != nil {
		return nil, err
	}
	nodes := make([]types.Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, types.Node{
			ID:         stringValue(rec, "id"),
			Label:      label,
			Properties: []byte(stringValue(rec, "props")),
		})
	}
	return nodes, nil
}

// CountByLabel counts nodes under label.
func (s *Store) CountByLabel(ctx context.Context, label string) (int, error) {
	q, err := countQuery(label)
	if err != nil {
		return 0, err
	}
	records, err := s.run(ctx, neo4j.AccessModeRead, "count nodes", q, nil)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return intValue(records[0], "n"), nil
}

// MergeEdge creates the relationship if absent.
func (s *Store) MergeEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) error {
	q, err := mergeEdgeQuery(sourceLabel, relType, targetLabel)
	if err != nil {
		return err
	}
	records, err := s.run(ctx, neo4j.AccessModeWrite, "merge edge", q, map[string]any{"sid": sourceID, "tid": targetID})
	if err != nil {
		return err
	}
	if len(records) == 0 || intValue(records[0], "n") == 0 {
		return fmt.Errorf("%s %s or %s %s: %w", sourceLabel, sourceID, targetLabel, targetID, types.ErrNotFound)
	}
	return nil
}

// DeleteEdge removes at most one matching relationship.
func (s *Store) DeleteEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) (int, error) {
	q, err := deleteEdgeQuery(sourceLabel, relType, targetLabel)
	if err != nil {
		return 0, err
	}
	records, err := s.run(ctx, neo4j.AccessModeWrite, "delete edge", q, map[string]any{"sid": sourceID, "tid": targetID})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return intValue(records[0], "n"), nil
}

// OutgoingEdges lists relationships leaving the node.
func (s *Store) OutgoingEdges(ctx context.Context, label, id string) ([]types.Edge, error) {
	q, err := outgoingQuery(label)
	if err != nil {
		return nil, err
	}
	return s.edges(ctx, "outgoing edges", q, id)
}

// IncomingEdges lists relationships arriving at the node.
func (s *Store) IncomingEdges(ctx context.Context, label, id string) ([]types.Edge, error) {
	q, err := incomingQuery(label)
	if err != nil {
		return nil, err
	}
	return s.edges(ctx, "incoming edges", q, id)
}

func (s *Store) edges(ctx context.Context, op, q, id string) ([]types.Edge, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead, op, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	edges := make([]types.Edge, 0, len(records))
	for _, rec := range records {
		edges = append(edges, types.Edge{
			RelType:        stringValue(rec, "rel"),
			NodeID:         stringValue(rec, "id"),
			NodeLabel:      stringValue(rec, "label"),
			NodeProperties: []byte(stringValue(rec, "props")),
		})
	}
	return edges, nil
}

// wrapErr maps connectivity failures to ErrStoreUnavailable. Other server
// errors keep their own identity.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%s: %w: %w", op, types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func stringValue(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func intValue(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
