package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

const packColumns = `name, display_name, enabled, source_path, version, dependencies,
    provided_types, manifest, last_modified, last_synced`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetPack returns the catalog row for name, or ErrPackNotFound.
func (b *Backend) GetPack(ctx context.Context, name string) (*types.FeaturePack, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, "SELECT "+packColumns+" FROM feature_packs WHERE name = ?", name)
	p, err := hydratePack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrPackNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPacks returns every catalog row ordered by name.
func (b *Backend) ListPacks(ctx context.Context) ([]types.FeaturePack, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT "+packColumns+" FROM feature_packs ORDER BY name")
	if err != nil {
		return nil, storeErr("list packs", err)
	}
	defer rows.Close()

	packs := []types.FeaturePack{}
	for rows.Next() {
		p, err := hydratePack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list packs", err)
	}
	return packs, nil
}

// UpsertPack writes the pack row and replaces its type rows in one
// transaction.
func (b *Backend) UpsertPack(ctx context.Context, pack types.FeaturePack, defs []types.TypeDefinition) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin upsert pack", err)
	}
	defer tx.Rollback()

	if err := upsertPackRow(ctx, tx, pack); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM type_definitions WHERE pack = ?", pack.Name); err != nil {
		return storeErr("clear pack types", err)
	}
	synced := formatTime(pack.LastSynced)
	if synced == "" {
		synced = b.timestamp()
	}
	for _, def := range defs {
		if err := upsertTypeRow(ctx, tx, def, pack.Name, pack.Enabled, synced); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit upsert pack", err)
	}
	return nil
}

// SetPackEnabled flips the pack row and its type rows.
func (b *Backend) SetPackEnabled(ctx context.Context, name string, enabled bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin set pack enabled", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE feature_packs SET enabled = ? WHERE name = ?", boolToInt(enabled), name)
	if err != nil {
		return storeErr("set pack enabled", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storeErr("set pack enabled", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrPackNotFound, name)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE type_definitions SET enabled = ? WHERE pack = ?", boolToInt(enabled), name); err != nil {
		return storeErr("set pack types enabled", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit set pack enabled", err)
	}
	return nil
}

// DeletePack removes the pack row and its type rows.
func (b *Backend) DeletePack(ctx context.Context, name string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin delete pack", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM feature_packs WHERE name = ?", name)
	if err != nil {
		return storeErr("delete pack", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storeErr("delete pack", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrPackNotFound, name)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM type_definitions WHERE pack = ?", name); err != nil {
		return storeErr("delete pack types", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit delete pack", err)
	}
	return nil
}

// ListTypes returns catalog type rows ordered by label.
func (b *Backend) ListTypes(ctx context.Context, enabledOnly bool) ([]types.CatalogType, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT label, pack, definition, enabled, last_synced FROM type_definitions"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY label"

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list types", err)
	}
	defer rows.Close()

	out := []types.CatalogType{}
	for rows.Next() {
		var ct types.CatalogType
		var def, synced string
		var enabled int
		if err := rows.Scan(&ct.Label, &ct.Pack, &def, &enabled, &synced); err != nil {
			return nil, storeErr("scan type", err)
		}
		if err := json.Unmarshal([]byte(def), &ct.Definition); err != nil {
			return nil, fmt.Errorf("decode type %s: %w", ct.Label, err)
		}
		ct.Definition.Label = ct.Label
		ct.Definition.OriginPack = ct.Pack
		ct.Enabled = enabled == 1
		ct.LastSynced = parseTime(synced)
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list types", err)
	}
	return out, nil
}

// UpsertType writes one type row. pack is empty for ad-hoc types.
func (b *Backend) UpsertType(ctx context.Context, def types.TypeDefinition, pack string, enabled bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}
	return upsertTypeRow(ctx, db, def, pack, enabled, b.timestamp())
}

// DeleteType removes one type row. Deleting an absent label is not an error.
func (b *Backend) DeleteType(ctx context.Context, label string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM type_definitions WHERE label = ?", label); err != nil {
		return storeErr("delete type", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPackRow(ctx context.Context, ex execer, p types.FeaturePack) error {
	deps, err := json.Marshal(nonNil(p.Dependencies))
	if err != nil {
		return fmt.Errorf("encode dependencies: %w", err)
	}
	provided, err := json.Marshal(nonNil(p.ProvidedTypes))
	if err != nil {
		return fmt.Errorf("encode provided types: %w", err)
	}
	manifest, err := json.Marshal(p.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO feature_packs (`+packColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		    display_name = excluded.display_name,
		    enabled = excluded.enabled,
		    source_path = excluded.source_path,
		    version = excluded.version,
		    dependencies = excluded.dependencies,
		    provided_types = excluded.provided_types,
		    manifest = excluded.manifest,
		    last_modified = excluded.last_modified,
		    last_synced = excluded.last_synced`,
		p.Name, p.DisplayName, boolToInt(p.Enabled), p.SourcePath, p.Version,
		string(deps), string(provided), string(manifest),
		formatTime(p.LastModified), formatTime(p.LastSynced),
	)
	if err != nil {
		return storeErr("upsert pack", err)
	}
	return nil
}

func upsertTypeRow(ctx context.Context, ex execer, def types.TypeDefinition, pack string, enabled bool, synced string) error {
	def.OriginPack = pack
	blob, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode type %s: %w", def.Label, err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO type_definitions (label, pack, definition, enabled, last_synced) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (label) DO UPDATE SET
		    pack = excluded.pack,
		    definition = excluded.definition,
		    enabled = excluded.enabled,
		    last_synced = excluded.last_synced`,
		def.Label, pack, string(blob), boolToInt(enabled), synced,
	)
	if err != nil {
		return storeErr("upsert type", err)
	}
	return nil
}

func hydratePack(row rowScanner) (*types.FeaturePack, error) {
	var p types.FeaturePack
	var enabled int
	var deps, provided, manifest, modified, synced string
	if err := row.Scan(&p.Name, &p.DisplayName, &enabled, &p.SourcePath, &p.Version,
		&deps, &provided, &manifest, &modified, &synced); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, storeErr("scan pack", err)
	}
	p.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(deps), &p.Dependencies); err != nil {
		return nil, fmt.Errorf("decode dependencies of %s: %w", p.Name, err)
	}
	if err := json.Unmarshal([]byte(provided), &p.ProvidedTypes); err != nil {
		return nil, fmt.Errorf("decode provided types of %s: %w", p.Name, err)
	}
	if err := json.Unmarshal([]byte(manifest), &p.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest of %s: %w", p.Name, err)
	}
	p.LastModified = parseTime(modified)
	p.LastSynced = parseTime(synced)
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
