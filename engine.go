package sqlcache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jward/sqlcache/internal/config"
	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/logging"
	"github.com/jward/sqlcache/internal/output"
	"github.com/jward/sqlcache/internal/resolve"
	"github.com/jward/sqlcache/internal/rules"
	"github.com/jward/sqlcache/internal/scan"
	"github.com/jward/sqlcache/internal/source"
)

// Engine runs incremental builds for one project root.
type Engine struct {
	root    string
	paths   map[source.Role]string // absolute
	rel     map[source.Role]string // relative to root, as recorded in artifacts
	out     *output.Dir
	workers int
	keep    int
	rules   *rules.Script
	logger  *slog.Logger

	newRunID func() string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPaths overrides tracked file paths by role. Relative paths are taken
// from the root.
func WithPaths(paths map[source.Role]string) Option {
	return func(e *Engine) {
		for role, p := range paths {
			if p != "" {
				e.paths[role] = p
			}
		}
	}
}

// WithWorkers bounds the worker pool. Zero or less means one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithKeepGenerations sets how many generations survive pruning.
func WithKeepGenerations(n int) Option {
	return func(e *Engine) {
		e.keep = n
	}
}

// WithRules installs a rules script consulted for every query.
func WithRules(s *rules.Script) Option {
	return func(e *Engine) {
		e.rules = s
	}
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine for the project at root writing generations under
// outDir. Without WithPaths the default sqlc layout is tracked.
func New(root, outDir string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sqlcache: resolve root: %w", err)
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(abs, outDir)
	}
	e := &Engine{
		root:     abs,
		paths:    make(map[source.Role]string, len(source.Roles)),
		rel:      make(map[source.Role]string, len(source.Roles)),
		out:      output.NewDir(outDir),
		keep:     2,
		logger:   logging.Discard(),
		newRunID: func() string { return uuid.New().String() },
		now:      time.Now,
	}
	for role, p := range config.DefaultPaths {
		e.paths[role] = p
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	if e.keep < 1 {
		e.keep = 1
	}
	for _, role := range source.Roles {
		p := e.paths[role]
		if !filepath.IsAbs(p) {
			p = filepath.Join(abs, p)
		}
		e.paths[role] = filepath.Clean(p)
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			rel = p
		}
		e.rel[role] = filepath.ToSlash(rel)
	}
	return e, nil
}

// NewFromConfig creates an Engine from resolved configuration, loading the
// rules script when one is configured.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	opts := []Option{
		WithPaths(cfg.Paths()),
		WithWorkers(cfg.WorkerCount()),
		WithKeepGenerations(cfg.KeepGenerations),
		WithLogger(logger),
	}
	if cfg.RulesScript != "" {
		s, err := rules.Load(cfg.RulesScript, rules.WithLogger(logger.With("component", "rules")))
		if err != nil {
			return nil, fmt.Errorf("sqlcache: %w", err)
		}
		opts = append(opts, WithRules(s))
	}
	return New(cfg.Root, cfg.Output, opts...)
}

// Root returns the project root.
func (e *Engine) Root() string {
	return e.root
}

// OutputDir returns the directory holding generations.
func (e *Engine) OutputDir() string {
	return e.out.Root()
}

// Paths returns the absolute path of every tracked role.
func (e *Engine) Paths() map[source.Role]string {
	out := make(map[source.Role]string, len(e.paths))
	for k, v := range e.paths {
		out[k] = v
	}
	return out
}

// pipelineFingerprint digests everything besides the sources that shapes the
// artifacts. When it differs from the committed one every file and bundle is
// rebuilt.
func (e *Engine) pipelineFingerprint() string {
	rulesHash := ""
	if e.rules != nil {
		rulesHash = e.rules.Hash()
	}
	return source.HashString(FormatVersion + "\n" + rulesHash)
}

func (e *Engine) resolveRules() resolve.Rules {
	if e.rules == nil {
		return nil
	}
	return e.rules
}

// fileState tracks one role through a run.
type fileState struct {
	role   source.Role
	rel    string
	abs    string
	live   *source.File // nil when absent or unreadable
	prev   *index.File  // committed index, nil if none
	index  *index.File  // index in effect for this run
	status FileStatus
	err    error
}

// hold keeps the committed index for a file that cannot be refreshed.
func (st *fileState) hold(status FileStatus) {
	st.status = status
	st.index = st.prev
}

func grammarFor(role source.Role) scan.Grammar {
	switch role {
	case source.RoleSchema:
		return scan.GrammarSchema
	case source.RoleQuery:
		return scan.GrammarQuery
	}
	return scan.GrammarGenerated
}

// Build runs one incremental build. File-local failures are collected in the
// report; the returned error is non-nil only when the run was aborted.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) (*Report, error) {
	start := e.now()
	rep := &Report{
		RunID:    e.newRunID(),
		Rebuilt:  []BundleChange{},
		Kept:     []string{},
		Deferred: []string{},
		Removed:  []string{},
		Warnings: []Warning{},
	}
	log := e.logger.With("run_id", rep.RunID)
	log.Info("build.start", "root", e.root, "output", e.out.Root(), "force", opts.Force)

	abort := func(err error) (*Report, error) {
		rep.State = Aborted
		rep.Duration = e.now().Sub(start)
		log.Error("build.aborted", "error", err)
		return rep, err
	}

	prevDir, err := e.out.Current()
	if err != nil {
		return abort(&CommitIOError{Op: "read", Path: e.out.Root(), Err: err})
	}
	prev := loadPrevious(prevDir, log)
	pipeline := e.pipelineFingerprint()
	rebuildAll := opts.Force || (prev.dir != "" && prev.pipeline != pipeline)
	if rebuildAll && !opts.Force {
		log.Info("build.pipeline_changed")
	}

	states, err := e.readFiles(ctx)
	if err != nil {
		return abort(err)
	}
	e.decide(states, prev, rebuildAll, newFilter(opts.Files))
	if err := e.extract(ctx, states); err != nil {
		return abort(err)
	}
	byRole := make(map[source.Role]*fileState, len(states))
	for _, st := range states {
		byRole[st.role] = st
		e.reportFile(rep, st)
	}

	p, err := e.plan(ctx, byRole, prev, rebuildAll, newFilter(opts.Queries))
	if err != nil {
		return abort(err)
	}
	e.reportPlan(rep, p, byRole, prev, rebuildAll)

	for _, role := range source.Roles {
		if st := byRole[role]; role.Required() && st.index == nil && st.err != nil {
			rep.Fatal = true
		}
	}

	if !e.needsCommit(prev, states, p, rebuildAll) {
		rep.State = CommittedClean
		if len(rep.Errors) > 0 {
			rep.State = CommittedPartial
		}
		rep.Generation = prev.dir
		rep.Duration = e.now().Sub(start)
		log.Info("build.done", "state", rep.State, "errors", len(rep.Errors))
		return rep, nil
	}

	if err := ctx.Err(); err != nil {
		return abort(err)
	}
	gen, err := e.commit(ctx, rep.RunID, prev, states, p, pipeline, log)
	if err != nil {
		return abort(err)
	}
	rep.Generation = gen
	rep.State = Committed
	if len(rep.Errors) > 0 {
		rep.State = CommittedPartial
	}

	pruned, err := e.out.Prune(e.keep)
	if err != nil {
		log.Warn("commit.prune_failed", "error", err)
	}
	rep.Pruned = pruned
	rep.Duration = e.now().Sub(start)
	log.Info("build.done",
		"state", rep.State,
		"generation", filepath.Base(gen),
		"rebuilt", len(rep.Rebuilt),
		"kept", len(rep.Kept),
		"removed", len(rep.Removed),
		"errors", len(rep.Errors),
		"duration_ms", rep.Duration.Milliseconds())
	return rep, nil
}

// decide classifies every read file as stable, pending extraction, or held.
func (e *Engine) decide(states []*fileState, prev *previous, rebuildAll bool, files *filter) {
	for _, st := range states {
		st.prev = prev.indexes[st.role]
		switch {
		case st.status == StatusAbsent:
		case st.err != nil:
			st.hold(StatusFrozen)
		case !rebuildAll && st.prev != nil &&
			st.prev.ContentHash == st.live.Hash && st.prev.FilePath == st.rel:
			st.status = StatusStable
			st.index = st.prev
		case !files.matchFile(st.role, st.rel):
			st.hold(StatusDeferred)
		default:
			st.status = StatusExtracted
		}
	}
}

// needsCommit reports whether this run produces anything the committed
// generation does not already hold.
func (e *Engine) needsCommit(prev *previous, states []*fileState, p *plan, rebuildAll bool) bool {
	if prev.dir == "" || rebuildAll {
		return true
	}
	for _, st := range states {
		if st.index != st.prev {
			return true
		}
	}
	for _, bp := range p.bundles {
		if bp.action == actionRebuild {
			return true
		}
	}
	return len(p.removed) > 0
}

func (e *Engine) reportFile(rep *Report, st *fileState) {
	fr := FileReport{Role: st.role, Path: st.rel, Status: st.status}
	if st.index != nil {
		fr.Entities = len(st.index.Ranges)
	}
	if st.index != st.prev {
		for _, n := range changedEntities(st.role, st.prev, st.index) {
			fr.Changed = append(fr.Changed, n.name)
		}
		sort.Strings(fr.Changed)
	}
	if st.err != nil {
		fr.Error = st.err.Error()
		rep.Errors = append(rep.Errors, st.err)
	}
	rep.Files = append(rep.Files, fr)
}

func (e *Engine) reportPlan(rep *Report, p *plan, byRole map[source.Role]*fileState, prev *previous, rebuildAll bool) {
	g := newGraph()
	var changed []node
	for _, role := range source.Roles {
		st := byRole[role]
		changed = append(changed, changedEntities(role, st.prev, st.index)...)
	}
	for _, bp := range p.bundles {
		if bp.resolved {
			g.add(bp.query, queryDeps(bp.query, bp.result))
		}
		g.addRefs(prev.refs[bp.query])
	}
	reasons := g.reasons(changed)

	for _, bp := range p.bundles {
		if bp.err != nil {
			rep.Errors = append(rep.Errors, bp.err)
		}
		switch bp.action {
		case actionRebuild:
			why := reasons[bp.query]
			switch {
			case !bp.hadPrev:
				why = []string{"new"}
			case rebuildAll && len(why) == 0:
				why = []string{"forced"}
			case len(why) == 0:
				why = []string{"dependencies changed"}
			}
			rep.Rebuilt = append(rep.Rebuilt, BundleChange{Query: bp.query, Reasons: why})
			for _, w := range bp.result.Warnings {
				rep.Warnings = append(rep.Warnings, Warning{Query: bp.query, Message: w})
			}
		case actionKeep:
			rep.Kept = append(rep.Kept, bp.query)
		case actionSkip:
			rep.Deferred = append(rep.Deferred, bp.query)
		}
	}
	rep.Removed = append(rep.Removed, p.removed...)
	sort.Slice(rep.Rebuilt, func(i, j int) bool { return rep.Rebuilt[i].Query < rep.Rebuilt[j].Query })
	sort.Strings(rep.Kept)
	sort.Strings(rep.Deferred)
	sort.Strings(rep.Removed)
}
