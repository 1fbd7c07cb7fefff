package sqlcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/sqlcache/internal/bundle"
	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/output"
	"github.com/jward/sqlcache/internal/source"
	"github.com/jward/sqlcache/internal/store"
)

// Reader serves one committed generation. The generation is resolved once
// at Open, so a concurrent build never changes what a Reader sees.
type Reader struct {
	dir     string
	catalog *store.Store
}

// Open resolves the current generation under outDir.
func Open(outDir string) (*Reader, error) {
	dir, err := output.NewDir(outDir).Current()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("open %s: %w", outDir, ErrNoGeneration)
	}
	cat, err := store.OpenReadOnly(filepath.Join(dir, output.CatalogDB))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Reader{dir: dir, catalog: cat}, nil
}

// Close releases the catalog.
func (r *Reader) Close() error {
	return r.catalog.Close()
}

// Generation returns the generation directory being read.
func (r *Reader) Generation() string {
	return r.dir
}

// Metadata returns a catalog metadata value, "" when unset.
func (r *Reader) Metadata(key string) (string, error) {
	return r.catalog.GetMetadata(key)
}

// Index loads the committed index of role. It returns nil when the role has
// no index in this generation.
func (r *Reader) Index(role source.Role) (*index.File, error) {
	f, err := r.catalog.FileByRole(string(role))
	if err != nil || f == nil {
		return nil, err
	}
	return index.Load(filepath.Join(r.dir, output.IndexPath(string(role))))
}

// Bundle loads the committed bundle of query.
func (r *Reader) Bundle(query string) (*bundle.Bundle, error) {
	row, err := r.bundleRow(query)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("bundle %s: %w", query, os.ErrNotExist)
	}
	return bundle.Load(filepath.Join(r.dir, row.Path))
}

func (r *Reader) bundleRow(query string) (*store.Bundle, error) {
	rows, err := r.catalog.Bundles()
	if err != nil {
		return nil, err
	}
	for _, b := range rows {
		if b.QueryName == query {
			return b, nil
		}
	}
	return nil, nil
}

// BundleInfo summarizes one committed bundle.
type BundleInfo struct {
	Query    string `json:"query"`
	Path     string `json:"path"`
	Warnings int    `json:"warnings"`
}

// Bundles lists the committed bundles by query name.
func (r *Reader) Bundles() ([]BundleInfo, error) {
	rows, err := r.catalog.Bundles()
	if err != nil {
		return nil, err
	}
	out := make([]BundleInfo, len(rows))
	for i, b := range rows {
		out[i] = BundleInfo{Query: b.QueryName, Path: b.Path, Warnings: b.WarningCount}
	}
	return out, nil
}

// EntityMatch is one committed entity.
type EntityMatch struct {
	Role      source.Role `json:"role"`
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	Detail    string      `json:"detail,omitempty"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Hash      string      `json:"hash"`
}

func toMatches(ents []*store.Entity) []EntityMatch {
	out := make([]EntityMatch, len(ents))
	for i, e := range ents {
		out[i] = EntityMatch{
			Role:      source.Role(e.FileRole),
			Name:      e.Name,
			Kind:      e.Kind,
			Detail:    e.Detail,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
			Hash:      e.Hash,
		}
	}
	return out
}

// Entity returns every entity named name, case-insensitively, across roles.
func (r *Reader) Entity(name string) ([]EntityMatch, error) {
	ents, err := r.catalog.EntitiesByName(name)
	if err != nil {
		return nil, err
	}
	return toMatches(ents), nil
}

// Entities lists committed entities in line order, restricted to role and
// kind when set.
func (r *Reader) Entities(role source.Role, kind string) ([]EntityMatch, error) {
	var (
		ents []*store.Entity
		err  error
	)
	switch {
	case role != "":
		ents, err = r.catalog.EntitiesByFile(string(role))
	case kind != "":
		ents, err = r.catalog.EntitiesByKind(kind)
	default:
		for _, ro := range source.Roles {
			more, err := r.catalog.EntitiesByFile(string(ro))
			if err != nil {
				return nil, err
			}
			ents = append(ents, more...)
		}
	}
	if err != nil {
		return nil, err
	}
	if role != "" && kind != "" {
		filtered := ents[:0]
		for _, e := range ents {
			if e.Kind == kind {
				filtered = append(filtered, e)
			}
		}
		ents = filtered
	}
	return toMatches(ents), nil
}

// Dependents returns the sorted bundles that inline the named entity of role.
// With an empty role every role is searched; with an empty name any entity
// of the role counts.
func (r *Reader) Dependents(role source.Role, name string) ([]string, error) {
	roles := []source.Role{role}
	if role == "" {
		roles = source.Roles
	}
	seen := map[string]bool{}
	var out []string
	for _, ro := range roles {
		var (
			names []string
			err   error
		)
		if name == "" {
			names, err = r.catalog.BundlesReferencingFile(string(ro))
		} else {
			names, err = r.catalog.BundlesReferencing(string(ro), []string{name})
		}
		if err != nil {
			return nil, err
		}
		for _, q := range names {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Snippet returns the committed text of an entity as recorded in a bundle
// that inlines it, without reading the live sources.
func (r *Reader) Snippet(role source.Role, name string) (string, error) {
	deps, err := r.Dependents(role, name)
	if err != nil {
		return "", err
	}
	for _, q := range deps {
		b, err := r.Bundle(q)
		if err != nil {
			return "", err
		}
		if text, ok := snippetFrom(b, role, name); ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("snippet %s:%s: not inlined by any bundle", role, name)
}

func snippetFrom(b *bundle.Bundle, role source.Role, name string) (string, bool) {
	switch role {
	case source.RoleQuery:
		if b.QueryName == name {
			return b.QuerySQL, true
		}
	case source.RoleSchema:
		for _, t := range b.Tables {
			if t.TableName == name {
				return t.TableSQL, true
			}
		}
	default:
		for _, c := range b.GeneratedCode {
			if c.Name == name || strings.HasSuffix(name, "."+c.Name) {
				return c.Code, true
			}
		}
	}
	return "", false
}
