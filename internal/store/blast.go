package store

import "fmt"

// BundlesReferencing returns the names of bundles that depend on any of the
// named entities of a file role, sorted.
func (s *Store) BundlesReferencing(fileRole string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT query_name FROM bundle_refs
		WHERE file_role = ? AND ref_name IN (` + placeholderList(len(names)) + `)
		ORDER BY query_name`
	args := append([]any{fileRole}, stringsToArgs(names)...)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("bundles referencing: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan query name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// BundlesReferencingFile returns the names of bundles with any dependency in
// the given file role, sorted.
func (s *Store) BundlesReferencingFile(fileRole string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT query_name FROM bundle_refs WHERE file_role = ? ORDER BY query_name`, fileRole)
	if err != nil {
		return nil, fmt.Errorf("bundles referencing file: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan query name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
