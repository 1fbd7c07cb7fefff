// Package rules runs the optional Risor script that picks extra generated
// declarations to inline into a query's bundle.
//
// The script is evaluated once per query with these globals:
//
//	query_name  string         the query being bundled
//	tables      list[string]   resolved relation names, in reference order
//	candidates  list[string]   every generated entity key, sorted
//	model_name  func(string)   the generated model type name for a table
//	log         object         log.info / log.warn / log.error
//
// The value of the script's last expression is the result: a list of entity
// keys, a single key, or nil.
//
// Script variables must not reuse the name of a global or a Risor builtin
// (keys, len, list, string, ...); the script then fails to compile.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/sqlcache/internal/resolve"
	"github.com/jward/sqlcache/internal/source"
)

// Script is a loaded rules script. It is safe for concurrent use; each
// evaluation gets its own VM.
type Script struct {
	label  string
	src    string
	dir    string
	hash   string
	logger *slog.Logger
}

// Option configures a Script.
type Option func(*Script)

// WithLogger routes the script's log calls to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Script) {
		s.logger = logger
	}
}

// Load reads a script from disk. Imports resolve relative to its directory.
func Load(path string, opts ...Option) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: loading script %s: %w", path, err)
	}
	s := FromSource(path, string(data), opts...)
	s.dir = filepath.Dir(path)
	return s, nil
}

// FromSource wraps inline script source.
func FromSource(label, src string, opts ...Option) *Script {
	s := &Script{
		label:  label,
		src:    src,
		hash:   source.HashString(src),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hash is the digest of the script source.
func (s *Script) Hash() string {
	return s.hash
}

// Extra evaluates the script for one query and returns the entity keys it
// selects, in script order.
func (s *Script) Extra(ctx context.Context, query string, tables, candidates []string) ([]string, error) {
	globals := s.buildGlobals(query, tables, candidates)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := s.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, s.src, opts...)
	if err != nil {
		return nil, fmt.Errorf("rules: script %s: %w", s.label, err)
	}
	keys, err := toKeys(result)
	if err != nil {
		return nil, fmt.Errorf("rules: script %s: %w", s.label, err)
	}
	return keys, nil
}

func (s *Script) buildGlobals(query string, tables, candidates []string) map[string]any {
	return map[string]any{
		"query_name": object.NewString(query),
		"tables":     stringList(tables),
		"candidates": stringList(candidates),
		"model_name": modelNameFn,
		"log":        mustProxy(&logObject{logger: s.logger.With("script", s.label, "query", query)}),
	}
}

func (s *Script) buildImporter(globals map[string]any) importer.Importer {
	if s.dir == "" {
		return nil
	}
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	return importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: names,
		SourceDir:   s.dir,
		Extensions:  []string{".risor"},
	})
}

func stringList(items []string) *object.List {
	objs := make([]object.Object, len(items))
	for i, item := range items {
		objs[i] = object.NewString(item)
	}
	return object.NewList(objs)
}

func toKeys(result object.Object) ([]string, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case *object.NilType:
		return nil, nil
	case *object.String:
		return []string{v.Value()}, nil
	case *object.List:
		var keys []string
		for i, item := range v.Value() {
			str, ok := item.(*object.String)
			if !ok {
				return nil, fmt.Errorf("result item %d must be a string, got %s", i, item.Type())
			}
			keys = append(keys, str.Value())
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("result must be a list of strings, got %s", result.Type())
	}
}

// modelNameFn is "model_name(table)".
var modelNameFn = object.NewBuiltin("model_name", func(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 1 {
		return object.NewArgsError("model_name", 1, len(args))
	}
	table, ok := args[0].(*object.String)
	if !ok {
		return object.Errorf("model_name: table must be a string, got %s", args[0].Type())
	}
	return object.NewString(resolve.ModelName(table.Value()))
})

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("rules: proxy error: %v", err))
	}
	return p
}

// logObject provides log.info/warn/error methods for scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info("rules.log", "msg", msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn("rules.log", "msg", msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error("rules.log", "msg", msg)
}
