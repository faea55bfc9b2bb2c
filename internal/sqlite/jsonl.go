package sqlite

// JSONL catalog backup. One file per catalog table, one JSON record per
// line, written atomically so a crash never leaves a half-written file.

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// JSONL file names used by ExportCatalog and ImportCatalog.
const (
	PacksJSONL = "feature_packs.jsonl"
	TypesJSONL = "type_definitions.jsonl"
)

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// maxRecordSize bounds one JSONL line; type definitions with long choice
// lists exceed bufio's 64 KiB default.
const maxRecordSize = 4 << 20

// ExportCatalog writes every pack and type row to dir as JSONL.
func (b *Backend) ExportCatalog(ctx context.Context, dir string) error {
	packs, err := b.ListPacks(ctx)
	if err != nil {
		return err
	}
	catalogTypes, err := b.ListTypes(ctx, false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	packRecords := make([]json.RawMessage, 0, len(packs))
	for _, p := range packs {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode pack %s: %w", p.Name, err)
		}
		packRecords = append(packRecords, raw)
	}
	typeRecords := make([]json.RawMessage, 0, len(catalogTypes))
	for _, ct := range catalogTypes {
		raw, err := json.Marshal(ct)
		if err != nil {
			return fmt.Errorf("encode type %s: %w", ct.Label, err)
		}
		typeRecords = append(typeRecords, raw)
	}

	if err := writeJSONL(filepath.Join(dir, PacksJSONL), packRecords); err != nil {
		return fmt.Errorf("export packs: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, TypesJSONL), typeRecords); err != nil {
		return fmt.Errorf("export types: %w", err)
	}
	return nil
}

// ImportCatalog upserts the pack and type rows found in dir in one
// transaction and returns how many of each were applied. A missing file is
// treated as empty. Records with invalid identifiers are skipped.
func (b *Backend) ImportCatalog(ctx context.Context, dir string) (packCount, typeCount int, err error) {
	packRecords, err := readOptionalJSONL(filepath.Join(dir, PacksJSONL))
	if err != nil {
		return 0, 0, err
	}
	typeRecords, err := readOptionalJSONL(filepath.Join(dir, TypesJSONL))
	if err != nil {
		return 0, 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, storeErr("begin import", err)
	}
	defer tx.Rollback()

	for _, raw := range packRecords {
		var p types.FeaturePack
		if err := json.Unmarshal(raw, &p); err != nil || types.ValidatePackName(p.Name) != nil {
			continue
		}
		if err := upsertPackRow(ctx, tx, p); err != nil {
			return 0, 0, err
		}
		packCount++
	}
	for _, raw := range typeRecords {
		var ct types.CatalogType
		if err := json.Unmarshal(raw, &ct); err != nil {
			continue
		}
		ct.Definition.Label = ct.Label
		if ct.Definition.Validate() != nil {
			continue
		}
		synced := formatTime(ct.LastSynced)
		if synced == "" {
			synced = b.timestamp()
		}
		if err := upsertTypeRow(ctx, tx, ct.Definition, ct.Pack, ct.Enabled, synced); err != nil {
			return 0, 0, err
		}
		typeCount++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, storeErr("commit import", err)
	}
	return packCount, typeCount, nil
}

func readOptionalJSONL(path string) ([]json.RawMessage, error) {
	records, err := readJSONL(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return records, err
}
