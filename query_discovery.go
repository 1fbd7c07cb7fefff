package sqlcache

import (
	"fmt"

	"github.com/jward/sqlcache/internal/source"
	"github.com/jward/sqlcache/internal/store"
)

// Pagination controls offset+limit paging on search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult is one page of results plus the total match count.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

// Search finds committed entities whose name matches a glob pattern ('*' is
// the wildcard), optionally restricted to kinds and one role.
func (r *Reader) Search(pattern string, kinds []string, role source.Role, page Pagination) (*PagedResult[EntityMatch], error) {
	page = page.normalize()
	ents, total, err := r.catalog.SearchEntities(pattern, store.EntityFilter{Kinds: kinds, FileRole: string(role)}, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &PagedResult[EntityMatch]{Items: toMatches(ents), TotalCount: total}, nil
}

// FileSummary describes one committed file.
type FileSummary struct {
	Role       source.Role    `json:"role"`
	Path       string         `json:"path"`
	TotalLines int            `json:"total_lines"`
	Kinds      map[string]int `json:"kinds"`
}

// Summary is an overview of a committed generation.
type Summary struct {
	Generation string        `json:"generation"`
	RunID      string        `json:"run_id"`
	CreatedAt  string        `json:"created_at"`
	Files      []FileSummary `json:"files"`
	Bundles    int           `json:"bundles"`
	Warnings   int           `json:"warnings"`
}

// Summary reports what the generation holds.
func (r *Reader) Summary() (*Summary, error) {
	sum := &Summary{Generation: r.dir, Files: []FileSummary{}}
	var err error
	if sum.RunID, err = r.catalog.GetMetadata(store.MetaRunID); err != nil {
		return nil, err
	}
	if sum.CreatedAt, err = r.catalog.GetMetadata(store.MetaCreatedAt); err != nil {
		return nil, err
	}
	files, err := r.catalog.Files()
	if err != nil {
		return nil, err
	}
	counts, err := r.catalog.KindCounts()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		kinds := counts[f.Role]
		if kinds == nil {
			kinds = map[string]int{}
		}
		sum.Files = append(sum.Files, FileSummary{
			Role:       source.Role(f.Role),
			Path:       f.Path,
			TotalLines: f.TotalLines,
			Kinds:      kinds,
		})
	}
	bundles, err := r.catalog.Bundles()
	if err != nil {
		return nil, err
	}
	sum.Bundles = len(bundles)
	for _, b := range bundles {
		sum.Warnings += b.WarningCount
	}
	return sum, nil
}
