package sqlcache

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/output"
	"github.com/jward/sqlcache/internal/source"
	"github.com/jward/sqlcache/internal/store"
)

// previous is what the committed generation contributes to a run.
type previous struct {
	dir      string // "" when nothing usable is committed
	pipeline string
	indexes  map[source.Role]*index.File
	bundles  map[string]store.Bundle
	refs     map[string][]store.BundleRef
}

func emptyPrevious() *previous {
	return &previous{
		indexes: map[source.Role]*index.File{},
		bundles: map[string]store.Bundle{},
		refs:    map[string][]store.BundleRef{},
	}
}

// loadPrevious reads the committed generation at dir. Artifacts that fail
// validation are skipped so the run rebuilds them; an unreadable catalog
// discards the whole generation.
func loadPrevious(dir string, log *slog.Logger) *previous {
	prev := emptyPrevious()
	if dir == "" {
		return prev
	}
	cat, err := store.OpenReadOnly(filepath.Join(dir, output.CatalogDB))
	if err != nil {
		log.Warn("previous.catalog_unreadable", "generation", filepath.Base(dir), "error", err)
		return prev
	}
	defer cat.Close()

	pipeline, err := cat.GetMetadata(store.MetaPipelineFingerprint)
	if err != nil {
		log.Warn("previous.catalog_unreadable", "generation", filepath.Base(dir), "error", err)
		return prev
	}
	files, err := cat.Files()
	if err != nil {
		log.Warn("previous.catalog_unreadable", "generation", filepath.Base(dir), "error", err)
		return prev
	}
	bundles, err := cat.Bundles()
	if err != nil {
		log.Warn("previous.catalog_unreadable", "generation", filepath.Base(dir), "error", err)
		return prev
	}

	prev.dir = dir
	prev.pipeline = pipeline
	for _, f := range files {
		path := filepath.Join(dir, output.IndexPath(f.Role))
		ix, err := index.Load(path)
		if err != nil {
			log.Warn("previous.index_invalid", "role", f.Role, "error", err)
			continue
		}
		if ix.ContentHash != f.ContentHash || ix.CheckBounds() != nil {
			log.Warn("previous.index_invalid", "role", f.Role, "error", "catalog mismatch")
			continue
		}
		prev.indexes[source.Role(f.Role)] = ix
	}
	for _, b := range bundles {
		if _, err := os.Stat(filepath.Join(dir, b.Path)); err != nil {
			log.Warn("previous.bundle_missing", "query", b.QueryName, "error", err)
			continue
		}
		refs, err := cat.BundleRefs(b.QueryName)
		if err != nil {
			log.Warn("previous.bundle_refs", "query", b.QueryName, "error", err)
			continue
		}
		prev.bundles[b.QueryName] = *b
		for _, r := range refs {
			prev.refs[b.QueryName] = append(prev.refs[b.QueryName], *r)
		}
	}
	return prev
}
