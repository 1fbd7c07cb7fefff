package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// CommitBatch inserts all buffered rows from a BatchedStore within a single
// transaction. Insert order respects FK dependencies:
//  1. Files
//  2. Entities (depend on files)
//  3. Bundles
//  4. BundleRefs (depend on bundles)
//  5. Metadata
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.order()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, f := range batch.Files {
		if err := insertFileTx(tx, &f); err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Role, err)
		}
	}
	for _, e := range batch.Entities {
		if err := insertEntityTx(tx, &e); err != nil {
			return fmt.Errorf("commit batch: entity %s/%s: %w", e.FileRole, e.Name, err)
		}
	}
	for _, b := range batch.Bundles {
		if err := insertBundleTx(tx, &b); err != nil {
			return fmt.Errorf("commit batch: bundle %q: %w", b.QueryName, err)
		}
	}
	for _, r := range batch.BundleRefs {
		if err := insertBundleRefTx(tx, &r); err != nil {
			return fmt.Errorf("commit batch: bundle ref %s -> %s: %w", r.QueryName, r.RefName, err)
		}
	}

	keys := make([]string, 0, len(batch.Metadata))
	for k := range batch.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.Exec(
			`INSERT INTO metadata (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, batch.Metadata[k]); err != nil {
			return fmt.Errorf("commit batch: metadata %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// --- Direct insert methods (DataStore on *Store) ---

func (s *Store) InsertFile(f *File) error {
	return s.inTx(func(tx *sql.Tx) error { return insertFileTx(tx, f) })
}

func (s *Store) InsertEntity(e *Entity) error {
	return s.inTx(func(tx *sql.Tx) error { return insertEntityTx(tx, e) })
}

func (s *Store) InsertBundle(b *Bundle) error {
	return s.inTx(func(tx *sql.Tx) error { return insertBundleTx(tx, b) })
}

func (s *Store) InsertBundleRef(r *BundleRef) error {
	return s.inTx(func(tx *sql.Tx) error { return insertBundleRefTx(tx, r) })
}

func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---

func insertFileTx(tx *sql.Tx, f *File) error {
	_, err := tx.Exec(
		`INSERT INTO files (role, path, content_hash, total_lines) VALUES (?, ?, ?, ?)`,
		f.Role, f.Path, f.ContentHash, f.TotalLines,
	)
	return err
}

func insertEntityTx(tx *sql.Tx, e *Entity) error {
	_, err := tx.Exec(
		`INSERT INTO entities (file_role, name, kind, detail, start_line, end_line, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.FileRole, e.Name, e.Kind, e.Detail, e.StartLine, e.EndLine, e.Hash,
	)
	return err
}

func insertBundleTx(tx *sql.Tx, b *Bundle) error {
	_, err := tx.Exec(
		`INSERT INTO bundles (query_name, path, fingerprint, warning_count) VALUES (?, ?, ?, ?)`,
		b.QueryName, b.Path, b.Fingerprint, b.WarningCount,
	)
	return err
}

func insertBundleRefTx(tx *sql.Tx, r *BundleRef) error {
	_, err := tx.Exec(
		`INSERT INTO bundle_refs (query_name, ref_kind, ref_name, file_role, ordinal) VALUES (?, ?, ?, ?, ?)`,
		r.QueryName, r.RefKind, r.RefName, r.FileRole, r.Ordinal,
	)
	return err
}
