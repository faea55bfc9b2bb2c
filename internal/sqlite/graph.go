package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// FindByLabelAndID returns the node with id under label, or ErrNotFound.
// A node stored under another label is not found.
func (b *Backend) FindByLabelAndID(ctx context.Context, label, id string) (*types.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var n types.Node
	var props string
	err = db.QueryRowContext(ctx,
		"SELECT node_id, label, properties FROM nodes WHERE node_id = ? AND label = ?",
		id, label,
	).Scan(&n.ID, &n.Label, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find node", err)
	}
	n.Properties = []byte(props)
	return &n, nil
}

// CreateNode inserts a node and returns its generated id.
func (b *Backend) CreateNode(ctx context.Context, label string, properties []byte) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return "", err
	}

	id := generateUUID()
	now := b.timestamp()
	_, err = db.ExecContext(ctx,
		"INSERT INTO nodes (node_id, label, properties, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, label, string(properties), now, now,
	)
	if err != nil {
		return "", storeErr("create node", err)
	}
	return id, nil
}

// UpdateNode replaces the property blob of an existing node.
func (b *Backend) UpdateNode(ctx context.Context, label, id string, properties []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		"UPDATE nodes SET properties = ?, updated_at = ? WHERE node_id = ? AND label = ?",
		string(properties), b.timestamp(), id, label,
	)
	if err != nil {
		return storeErr("update node", err)
	}
	return requireAffected(res, "update node")
}

// DeleteNode removes a node. Its edges go with it through the foreign key
// cascade.
func (b *Backend) DeleteNode(ctx context.Context, label, id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM nodes WHERE node_id = ? AND label = ?", id, label)
	if err != nil {
		return storeErr("delete node", err)
	}
	return requireAffected(res, "delete node")
}

// ListByLabel returns one page of nodes under label in creation order.
func (b *Backend) ListByLabel(ctx context.Context, label string, limit, offset int) ([]types.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT node_id, label, properties FROM nodes WHERE label = ? ORDER BY node_id LIMIT ? OFFSET ?",
		label, limit, offset,
	)
	if err != nil {
		return nil, storeErr("list nodes", err)
	}
	defer rows.Close()

	nodes := []types.Node{}
	for rows.Next() {
		var n types.Node
		var props string
		if err := rows.Scan(&n.ID, &n.Label, &props); err != nil {
			return nil, storeErr("scan node", err)
		}
		n.Properties = []byte(props)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list nodes", err)
	}
	return nodes, nil
}

// CountByLabel returns the number of nodes under label.
func (b *Backend) CountByLabel(ctx context.Context, label string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE label = ?", label).Scan(&n); err != nil {
		return 0, storeErr("count nodes", err)
	}
	return n, nil
}

// MergeEdge creates the edge if it does not exist. The unique index on
// (rel_type, from_id, to_id) keeps concurrent merges from duplicating it.
func (b *Backend) MergeEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin merge edge", err)
	}
	defer tx.Rollback()

	for _, ep := range [][2]string{{sourceLabel, sourceID}, {targetLabel, targetID}} {
		var one int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM nodes WHERE node_id = ? AND label = ?", ep[1], ep[0],
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", ep[0], ep[1], types.ErrNotFound)
		}
		if err != nil {
			return storeErr("check edge endpoint", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO edges (edge_id, rel_type, from_id, to_id, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (rel_type, from_id, to_id) DO NOTHING`,
		generateUUID(), relType, sourceID, targetID, b.timestamp(),
	)
	if err != nil {
		return storeErr("merge edge", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit merge edge", err)
	}
	return nil
}

// DeleteEdge removes at most one matching edge and returns the number
// removed. Both endpoint labels must match.
func (b *Backend) DeleteEdge(ctx context.Context, sourceLabel, sourceID, relType, targetLabel, targetID string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM edges WHERE edge_id IN (
		    SELECT e.edge_id FROM edges e
		    JOIN nodes s ON s.node_id = e.from_id AND s.label = ?
		    JOIN nodes t ON t.node_id = e.to_id AND t.label = ?
		    WHERE e.rel_type = ? AND e.from_id = ? AND e.to_id = ?
		    LIMIT 1)`,
		sourceLabel, targetLabel, relType, sourceID, targetID,
	)
	if err != nil {
		return 0, storeErr("delete edge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete edge", err)
	}
	return int(n), nil
}

// OutgoingEdges lists edges leaving the node, with the target endpoint.
func (b *Backend) OutgoingEdges(ctx context.Context, label, id string) ([]types.Edge, error) {
	return b.edges(ctx,
		`SELECT e.rel_type, n.node_id, n.label, n.properties FROM edges e
		 JOIN nodes self ON self.node_id = e.from_id AND self.label = ?
		 JOIN nodes n ON n.node_id = e.to_id
		 WHERE e.from_id = ?
		 ORDER BY e.rel_type, e.edge_id`,
		label, id)
}

// IncomingEdges lists edges arriving at the node, with the source endpoint.
func (b *Backend) IncomingEdges(ctx context.Context, label, id string) ([]types.Edge, error) {
	return b.edges(ctx,
		`SELECT e.rel_type, n.node_id, n.label, n.properties FROM edges e
		 JOIN nodes self ON self.node_id = e.to_id AND self.label = ?
		 JOIN nodes n ON n.node_id = e.from_id
		 WHERE e.to_id = ?
		 ORDER BY e.rel_type, e.edge_id`,
		label, id)
}

func (b *Backend) edges(ctx context.Context, query, label, id string) ([]types.Edge, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, label, id)
	if err != nil {
		return nil, storeErr("query edges", err)
	}
	defer rows.Close()

	edges := []types.Edge{}
	for rows.Next() {
		var e types.Edge
		var props string
		if err := rows.Scan(&e.RelType, &e.NodeID, &e.NodeLabel, &props); err != nil {
			return nil, storeErr("scan edge", err)
		}
		e.NodeProperties = []byte(props)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query edges", err)
	}
	return edges, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}
