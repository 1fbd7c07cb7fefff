package sqlcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jward/sqlcache/internal/bundle"
	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/resolve"
	"github.com/jward/sqlcache/internal/scan"
	"github.com/jward/sqlcache/internal/source"
)

// readFiles hashes every tracked file with a bounded pool. Per-file failures
// are recorded on the state; only cancellation is returned.
func (e *Engine) readFiles(ctx context.Context) ([]*fileState, error) {
	states := make([]*fileState, len(source.Roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, role := range source.Roles {
		st := &fileState{role: role, rel: e.rel[role], abs: e.paths[role]}
		states[i] = st
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := source.Read(st.abs)
			switch {
			case err == nil:
				f.Path = st.rel
				st.live = f
			case errors.Is(err, fs.ErrNotExist) && role.Required():
				st.err = &scan.ParseError{File: st.rel, Reason: "file not found"}
			case errors.Is(err, fs.ErrNotExist):
				st.status = StatusAbsent
			default:
				st.err = fmt.Errorf("read %s: %w", st.rel, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

// extract scans every file pending extraction. Files are independent, so
// they run concurrently in any order.
func (e *Engine) extract(ctx context.Context, states []*fileState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, st := range states {
		if st.status != StatusExtracted {
			continue
		}
		g.Go(func() error {
			ents, err := scan.Scan(gctx, grammarFor(st.role), st.live)
			var ix *index.File
			if err == nil {
				ix, err = index.Build(st.live, ents)
			}
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				st.err = err
				st.hold(StatusFrozen)
				e.logger.Warn("extract.failed", "file", st.rel, "error", err)
				return nil
			}
			st.index = ix
			e.logger.Debug("extract.done", "file", st.rel, "entities", len(ix.Ranges))
			return nil
		})
	}
	return g.Wait()
}

type action int

const (
	actionKeep    action = iota // carry the committed bundle
	actionRebuild               // write a freshly assembled bundle
	actionSkip                  // no bundle this run
)

// bundlePlan is the decision for one query.
type bundlePlan struct {
	query    string
	action   action
	hadPrev  bool
	resolved bool
	result   resolve.Result
	fp       string
	data     []byte
	warnings int
	err      error
}

type plan struct {
	bundles []*bundlePlan // sorted by query
	removed []string
}

// plan resolves every query, fingerprints its inputs and assembles the
// bundles that changed. It runs after all extraction, which is the only
// ordering assembly needs.
func (e *Engine) plan(ctx context.Context, byRole map[source.Role]*fileState, prev *previous, rebuildAll bool, queries *filter) (*plan, error) {
	p := &plan{}
	q := byRole[source.RoleQuery]

	if q.status.held() || q.index == nil {
		for name := range prev.bundles {
			p.bundles = append(p.bundles, &bundlePlan{query: name, action: actionKeep, hadPrev: true})
		}
		sortPlans(p.bundles)
		return p, nil
	}

	src := bundle.Sources{}
	for role, st := range byRole {
		if st.index != nil {
			src[role] = bundle.Located{File: st.live, Index: st.index}
		}
	}
	var gens []resolve.Generated
	for _, role := range []source.Role{source.RoleQueryImpl, source.RoleModels} {
		if st := byRole[role]; st.index != nil {
			gens = append(gens, resolve.Generated{Role: role, Index: st.index})
		}
	}
	schema := byRole[source.RoleSchema].index
	rules := e.resolveRules()

	names := q.index.Names()
	p.bundles = make([]*bundlePlan, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, name := range names {
		_, had := prev.bundles[name]
		bp := &bundlePlan{query: name, hadPrev: had}
		p.bundles[i] = bp
		g.Go(func() error {
			entry, _ := q.index.Lookup(name)
			text, err := q.live.Slice(entry.StartLine, entry.EndLine)
			if err != nil {
				bp.fallback(err)
				return nil
			}
			res, err := resolve.Resolve(gctx, resolve.Input{
				Query:     name,
				Text:      text,
				Schema:    schema,
				Generated: gens,
			}, rules)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				bp.fallback(err)
				return nil
			}
			bp.result = res
			bp.resolved = true

			if held := heldDeps(res, byRole); len(held) > 0 {
				if !bp.hadPrev {
					bp.action = actionSkip
					return nil
				}
				bp.action = actionKeep
				return nil
			}

			bp.fp = bundle.Fingerprint(name, res, src)
			switch {
			case !queries.match(name):
				bp.keepOrSkip()
			case bp.hadPrev && !rebuildAll && prev.bundles[name].Fingerprint == bp.fp:
				bp.action = actionKeep
			default:
				b, err := bundle.Assemble(name, res, src)
				if err == nil {
					bp.data, err = b.Marshal()
				}
				if err != nil {
					bp.fallback(err)
					return nil
				}
				bp.action = actionRebuild
				bp.warnings = len(b.Warnings)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	live := make(map[string]bool, len(names))
	for _, name := range names {
		live[name] = true
	}
	for name := range prev.bundles {
		if live[name] {
			continue
		}
		if queries.match(name) {
			p.removed = append(p.removed, name)
			continue
		}
		p.bundles = append(p.bundles, &bundlePlan{query: name, action: actionKeep, hadPrev: true})
	}
	sortPlans(p.bundles)
	sort.Strings(p.removed)
	return p, nil
}

func (bp *bundlePlan) keepOrSkip() {
	if bp.hadPrev {
		bp.action = actionKeep
	} else {
		bp.action = actionSkip
	}
}

// fallback records a bundle that could not be assembled; its committed
// version, if any, is kept.
func (bp *bundlePlan) fallback(err error) {
	bp.err = fmt.Errorf("bundle %s: %w", bp.query, err)
	bp.keepOrSkip()
}

// heldDeps returns the held files a resolved query depends on. A held
// schema also captures queries whose tables did not resolve, since the
// missing definitions may be in the unparsed text; likewise for missing
// generated code.
func heldDeps(res resolve.Result, byRole map[source.Role]*fileState) []string {
	var held []string
	add := func(role source.Role) {
		st := byRole[role]
		if st == nil || !st.status.held() {
			return
		}
		for _, h := range held {
			if h == st.rel {
				return
			}
		}
		held = append(held, st.rel)
	}
	if len(res.Tables) > 0 || hasWarning(res, resolve.WarnUnresolved) {
		add(source.RoleSchema)
	}
	for _, c := range res.Code {
		add(c.Role)
	}
	if hasWarning(res, resolve.WarnMissingCode) {
		add(source.RoleQueryImpl)
		add(source.RoleModels)
	}
	return held
}

func hasWarning(res resolve.Result, prefix string) bool {
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func sortPlans(bps []*bundlePlan) {
	sort.Slice(bps, func(i, j int) bool { return bps[i].query < bps[j].query })
}
