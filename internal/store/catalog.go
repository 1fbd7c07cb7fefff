package store

import (
	"database/sql"
	"fmt"
)

// Files returns every committed file, ordered by role.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query(`SELECT role, path, content_hash, total_lines FROM files ORDER BY role`)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var out []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.Role, &f.Path, &f.ContentHash, &f.TotalLines); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FileByRole returns the committed file for role, or nil when absent.
func (s *Store) FileByRole(role string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(`SELECT role, path, content_hash, total_lines FROM files WHERE role = ?`, role).
		Scan(&f.Role, &f.Path, &f.ContentHash, &f.TotalLines)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by role %s: %w", role, err)
	}
	return f, nil
}

func scanEntity(scanner interface{ Scan(...any) error }) (*Entity, error) {
	e := &Entity{}
	if err := scanner.Scan(&e.FileRole, &e.Name, &e.Kind, &e.Detail, &e.StartLine, &e.EndLine, &e.Hash); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) queryEntities(query string, args ...any) ([]*Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const entityColumns = `file_role, name, kind, detail, start_line, end_line, hash`

// EntitiesByName returns entities whose name matches case-insensitively.
func (s *Store) EntitiesByName(name string) ([]*Entity, error) {
	return s.queryEntities(`SELECT `+entityColumns+` FROM entities
		WHERE name = ? COLLATE NOCASE ORDER BY file_role, start_line`, name)
}

// EntitiesByFile returns the entities of a file role ordered by start line.
func (s *Store) EntitiesByFile(role string) ([]*Entity, error) {
	return s.queryEntities(`SELECT `+entityColumns+` FROM entities
		WHERE file_role = ? ORDER BY start_line`, role)
}

// EntitiesByKind returns entities of a kind ordered by role and start line.
func (s *Store) EntitiesByKind(kind string) ([]*Entity, error) {
	return s.queryEntities(`SELECT `+entityColumns+` FROM entities
		WHERE kind = ? ORDER BY file_role, start_line`, kind)
}

// Bundles returns every committed bundle ordered by query name.
func (s *Store) Bundles() ([]*Bundle, error) {
	rows, err := s.db.Query(`SELECT query_name, path, fingerprint, warning_count FROM bundles ORDER BY query_name`)
	if err != nil {
		return nil, fmt.Errorf("bundles: %w", err)
	}
	defer rows.Close()
	var out []*Bundle
	for rows.Next() {
		b := &Bundle{}
		if err := rows.Scan(&b.QueryName, &b.Path, &b.Fingerprint, &b.WarningCount); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BundleRefs returns the dependency edges of one bundle in recorded order.
func (s *Store) BundleRefs(queryName string) ([]*BundleRef, error) {
	rows, err := s.db.Query(`SELECT query_name, ref_kind, ref_name, file_role, ordinal FROM bundle_refs
		WHERE query_name = ? ORDER BY ordinal`, queryName)
	if err != nil {
		return nil, fmt.Errorf("bundle refs: %w", err)
	}
	defer rows.Close()
	var out []*BundleRef
	for rows.Next() {
		r := &BundleRef{}
		if err := rows.Scan(&r.QueryName, &r.RefKind, &r.RefName, &r.FileRole, &r.Ordinal); err != nil {
			return nil, fmt.Errorf("scan bundle ref: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
