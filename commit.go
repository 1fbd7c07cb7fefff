package sqlcache

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jward/sqlcache/internal/bundle"
	"github.com/jward/sqlcache/internal/output"
	"github.com/jward/sqlcache/internal/store"
)

// commit stages a generation holding every artifact of this run and
// publishes it. Nothing is visible to readers until the final symlink swap;
// any failure removes the staged directory.
func (e *Engine) commit(ctx context.Context, runID string, prev *previous, states []*fileState, p *plan, pipeline string, log *slog.Logger) (string, error) {
	stage, err := e.out.Stage(runID, prev.dir)
	if err != nil {
		return "", &CommitIOError{Op: "stage", Path: e.out.Root(), Err: err}
	}
	fail := func(op, path string, err error) (string, error) {
		if aerr := stage.Abort(); aerr != nil {
			log.Warn("commit.abort_failed", "error", aerr)
		}
		return "", &CommitIOError{Op: op, Path: path, Err: err}
	}

	batch := store.NewBatchedStore()
	for _, st := range states {
		if st.index == nil {
			continue
		}
		rel := output.IndexPath(string(st.role))
		if st.index == st.prev {
			err = stage.Carry(rel)
		} else {
			var data []byte
			data, err = st.index.Marshal()
			if err == nil {
				err = stage.Write(rel, data)
			}
		}
		if err != nil {
			return fail("write index", rel, err)
		}
		if err := recordIndex(batch, st); err != nil {
			return fail("record index", rel, err)
		}
	}

	for _, bp := range p.bundles {
		rel := output.BundlePath(bundle.FileName(bp.query))
		switch bp.action {
		case actionKeep:
			if err := stage.Carry(rel); err != nil {
				return fail("carry bundle", rel, err)
			}
			if err := recordKept(batch, prev, bp.query); err != nil {
				return fail("record bundle", rel, err)
			}
		case actionRebuild:
			if err := stage.Write(rel, bp.data); err != nil {
				return fail("write bundle", rel, err)
			}
			if err := recordBundle(batch, bp, rel); err != nil {
				return fail("record bundle", rel, err)
			}
		}
	}

	batch.SetMetadata(store.MetaPipelineFingerprint, pipeline)
	batch.SetMetadata(store.MetaRunID, runID)
	batch.SetMetadata(store.MetaCreatedAt, e.now().UTC().Format(time.RFC3339))
	batch.SetMetadata(store.MetaRoot, e.root)

	dbPath := filepath.Join(stage.Path(), output.CatalogDB)
	if err := writeCatalog(dbPath, batch); err != nil {
		return fail("write catalog", dbPath, err)
	}

	if err := ctx.Err(); err != nil {
		if aerr := stage.Abort(); aerr != nil {
			log.Warn("commit.abort_failed", "error", aerr)
		}
		return "", err
	}
	if err := stage.Publish(); err != nil {
		return fail("publish", stage.Path(), err)
	}
	log.Info("commit.swap", "generation", stage.Name())
	return stage.Path(), nil
}

func writeCatalog(path string, batch *store.BatchedStore) error {
	cat, err := store.NewStore(path)
	if err != nil {
		return err
	}
	if err := cat.Migrate(); err != nil {
		cat.Close()
		return err
	}
	if err := cat.CommitBatch(batch); err != nil {
		cat.Close()
		return err
	}
	return cat.Close()
}

func recordIndex(ds store.DataStore, st *fileState) error {
	ix := st.index
	if err := ds.InsertFile(&store.File{
		Role:        string(st.role),
		Path:        ix.FilePath,
		ContentHash: ix.ContentHash,
		TotalLines:  ix.TotalLines,
	}); err != nil {
		return err
	}
	for _, name := range ix.Names() {
		en := ix.Ranges[name]
		if err := ds.InsertEntity(&store.Entity{
			FileRole:  string(st.role),
			Name:      name,
			Kind:      string(en.Kind),
			Detail:    en.Detail,
			StartLine: en.StartLine,
			EndLine:   en.EndLine,
			Hash:      en.Hash,
		}); err != nil {
			return err
		}
	}
	return nil
}

// recordKept copies a carried bundle's catalog rows, including its old
// fingerprint, so a later run still sees what it was built from.
func recordKept(ds store.DataStore, prev *previous, query string) error {
	row := prev.bundles[query]
	if err := ds.InsertBundle(&row); err != nil {
		return err
	}
	for _, r := range prev.refs[query] {
		if err := ds.InsertBundleRef(&r); err != nil {
			return err
		}
	}
	return nil
}

func recordBundle(ds store.DataStore, bp *bundlePlan, rel string) error {
	if err := ds.InsertBundle(&store.Bundle{
		QueryName:    bp.query,
		Path:         rel,
		Fingerprint:  bp.fp,
		WarningCount: bp.warnings,
	}); err != nil {
		return err
	}
	for i, n := range queryDeps(bp.query, bp.result) {
		kind := store.RefCode
		switch {
		case i == 0:
			kind = store.RefQuery
		case i <= len(bp.result.Tables):
			kind = store.RefTable
		}
		if err := ds.InsertBundleRef(&store.BundleRef{
			QueryName: bp.query,
			RefKind:   kind,
			RefName:   n.name,
			FileRole:  string(n.role),
			Ordinal:   i,
		}); err != nil {
			return err
		}
	}
	return nil
}
