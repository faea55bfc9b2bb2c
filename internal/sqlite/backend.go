// Package sqlite implements the embedded graph store and the persistent
// pack catalog on SQLite.
//
// Nodes keep their label and an opaque JSON property blob; edges reference
// nodes with ON DELETE CASCADE so deleting a node drops its relationships.
// The catalog tables hold one row per feature pack and one per type
// definition.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "cmdb.db"

const timeFormat = time.RFC3339Nano

var (
	_ types.GraphStore = (*Backend)(nil)
	_ types.Catalog    = (*Backend)(nil)
)

// Backend is a GraphStore and Catalog backed by one SQLite database.
type Backend struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

// Open creates dataDir if needed, opens the database inside it and applies
// the schema.
func Open(dataDir string) (*Backend, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return OpenPath(filepath.Join(dataDir, DatabaseFile))
}

// OpenPath opens the database at path and applies the schema.
func OpenPath(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, storeErr("open database", err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Backend{db: db, path: path, now: time.Now}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

func applySchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return storeErr("create schema", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			return storeErr("create index", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

// Close releases the database. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		return storeErr("close database", err)
	}
	return nil
}

// conn returns the database handle or ErrStoreUnavailable after Close.
// Callers hold b.mu for reading.
func (b *Backend) conn() (*sql.DB, error) {
	if b.closed {
		return nil, fmt.Errorf("database closed: %w", types.ErrStoreUnavailable)
	}
	return b.db, nil
}

func (b *Backend) timestamp() string {
	return b.now().UTC().Format(timeFormat)
}

// storeErr wraps a driver failure as ErrStoreUnavailable. Context
// cancellation is passed through unchanged.
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, types.ErrStoreUnavailable, err)
}

// generateUUID generates a new UUID v7 for node and edge ids.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
