package sqlcache

import (
	"fmt"
	"path/filepath"

	"github.com/jward/sqlcache/internal/bundle"
	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/output"
	"github.com/jward/sqlcache/internal/source"
	"github.com/jward/sqlcache/internal/store"
)

// Stale is one committed artifact that no longer matches its sources or
// fails validation.
type Stale struct {
	Artifact string `json:"artifact"`
	Reason   string `json:"reason"`
}

// VerifyReport is the outcome of Reader.Verify.
type VerifyReport struct {
	Generation string  `json:"generation"`
	Checked    int     `json:"checked"`
	Stale      []Stale `json:"stale"`
}

// OK reports whether every artifact checked out.
func (v *VerifyReport) OK() bool {
	return len(v.Stale) == 0
}

// Verify checks the committed generation against the live sources under
// root (the root recorded at build time when empty): every index must pass
// schema validation, match its source's content hash and stay in bounds, and
// every inlined snippet must equal the live text of its range.
func (r *Reader) Verify(root string) (*VerifyReport, error) {
	if root == "" {
		var err error
		if root, err = r.catalog.GetMetadata(store.MetaRoot); err != nil {
			return nil, err
		}
	}
	rep := &VerifyReport{Generation: r.dir, Stale: []Stale{}}
	stale := func(artifact, format string, args ...any) {
		rep.Stale = append(rep.Stale, Stale{Artifact: artifact, Reason: fmt.Sprintf(format, args...)})
	}

	files, err := r.catalog.Files()
	if err != nil {
		return nil, err
	}
	// live holds sources whose content still matches the committed index.
	live := map[string]*source.File{}
	for _, f := range files {
		artifact := output.IndexPath(f.Role)
		rep.Checked++
		ix, err := index.Load(filepath.Join(r.dir, artifact))
		if err != nil {
			stale(artifact, "invalid index: %v", err)
			continue
		}
		if ix.ContentHash != f.ContentHash {
			stale(artifact, "index hash %s does not match catalog", short(ix.ContentHash))
			continue
		}
		if err := ix.CheckBounds(); err != nil {
			stale(artifact, "%v", err)
			continue
		}
		src, err := source.Read(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			stale(artifact, "source unreadable: %v", err)
			continue
		}
		if src.Hash != ix.ContentHash {
			stale(artifact, "source %s changed (%s -> %s)", f.Path, short(ix.ContentHash), short(src.Hash))
			continue
		}
		if src.TotalLines() != ix.TotalLines {
			stale(artifact, "total_lines %d, source has %d", ix.TotalLines, src.TotalLines())
			continue
		}
		live[f.Path] = src
	}

	bundles, err := r.catalog.Bundles()
	if err != nil {
		return nil, err
	}
	for _, row := range bundles {
		rep.Checked++
		b, err := bundle.Load(filepath.Join(r.dir, row.Path))
		if err != nil {
			stale(row.Path, "invalid bundle: %v", err)
			continue
		}
		if b.QueryName != row.QueryName {
			stale(row.Path, "query_name %q, catalog has %q", b.QueryName, row.QueryName)
			continue
		}
		check := func(what, file string, rg index.Range, text string) {
			src, ok := live[file]
			if !ok {
				return
			}
			got, err := src.Slice(rg.StartLine, rg.EndLine)
			if err != nil {
				stale(row.Path, "%s: %v", what, err)
				return
			}
			if got != text {
				stale(row.Path, "%s: text differs from %s lines %d-%d", what, file, rg.StartLine, rg.EndLine)
			}
		}
		check("query "+b.QueryName, b.QueryFile, b.QueryRange, b.QuerySQL)
		for _, t := range b.Tables {
			check("table "+t.TableName, t.File, t.Range, t.TableSQL)
		}
		for _, c := range b.GeneratedCode {
			check(c.Type+" "+c.Name, c.File, c.Range, c.Code)
		}
	}
	return rep, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
