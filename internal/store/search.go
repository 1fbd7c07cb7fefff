package store

import (
	"fmt"
	"strings"
)

// EntityFilter narrows SearchEntities. Zero values match everything.
type EntityFilter struct {
	Kinds    []string
	FileRole string
}

// SearchEntities performs a glob-style, case-insensitive search on entity
// names. '*' is the wildcard. It returns one page of matches ordered by
// name and the total match count.
func (s *Store) SearchEntities(pattern string, filter EntityFilter, limit, offset int) ([]*Entity, int, error) {
	var where []string
	var args []any

	if pattern != "" && pattern != "*" {
		like := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, `name LIKE ? ESCAPE '\'`)
		args = append(args, like)
	}
	if len(filter.Kinds) > 0 {
		where = append(where, "kind IN ("+placeholderList(len(filter.Kinds))+")")
		args = append(args, stringsToArgs(filter.Kinds)...)
	}
	if filter.FileRole != "" {
		where = append(where, "file_role = ?")
		args = append(args, filter.FileRole)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entities `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search entities: count: %w", err)
	}
	items, err := s.queryEntities(`SELECT `+entityColumns+` FROM entities `+whereClause+`
		ORDER BY name COLLATE NOCASE, file_role LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search entities: %w", err)
	}
	return items, total, nil
}

// KindCounts returns the number of entities per (file role, kind).
func (s *Store) KindCounts() (map[string]map[string]int, error) {
	rows, err := s.db.Query(`SELECT file_role, kind, COUNT(*) FROM entities GROUP BY file_role, kind`)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]map[string]int)
	for rows.Next() {
		var role, kind string
		var n int
		if err := rows.Scan(&role, &kind, &n); err != nil {
			return nil, fmt.Errorf("kind counts: scan: %w", err)
		}
		if out[role] == nil {
			out[role] = make(map[string]int)
		}
		out[role][kind] = n
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
