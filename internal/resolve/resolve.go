// Package resolve determines what a query depends on: the schema relations
// it reads or writes, and the generated code that implements it.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/scan"
	"github.com/jward/sqlcache/internal/source"
)

// Warning prefixes carried into bundles.
const (
	WarnUnresolved    = "UnresolvedDependency"
	WarnMissingCode   = "MissingGeneratedCode"
	WarnRulesFailed   = "RulesScriptError"
	WarnUnknownTarget = "UnknownGeneratedCode"
)

// Generated is one generated-code index on the lookup path.
type Generated struct {
	Role  source.Role
	Index *index.File
}

// Input is everything needed to resolve one query.
type Input struct {
	Query     string
	Text      string
	Schema    *index.File
	Generated []Generated // searched in order
}

// CodeRef names one generated entity a query's bundle inlines.
type CodeRef struct {
	Role source.Role
	Key  string // index key, "Recv.Method" for methods
	Name string // bare declared name
	Type string // function, struct, interface or type
}

// Result is the resolved dependency set of one query.
type Result struct {
	Tables   []string // canonical schema names, in reference order
	Code     []CodeRef
	Warnings []string
}

// Rules chooses extra generated entities to inline for a query.
type Rules interface {
	Extra(ctx context.Context, query string, tables, candidates []string) ([]string, error)
}

// Resolve computes the dependency set of one query. Missing tables and code
// are reported as warnings in the result; only a lexing failure of the query
// text is an error. rules may be nil.
func Resolve(ctx context.Context, in Input, rules Rules) (Result, error) {
	var res Result

	names, err := ReferencedTables(in.Text)
	if err != nil {
		return res, fmt.Errorf("resolve %s: %w", in.Query, err)
	}
	relations := relationsByLowerName(in.Schema)
	for _, name := range names {
		canonical, ok := relations[strings.ToLower(name)]
		if !ok {
			res.Warnings = append(res.Warnings, WarnUnresolved+": "+name)
			continue
		}
		res.Tables = append(res.Tables, canonical)
	}

	seen := map[string]bool{}
	addRef := func(ref CodeRef) {
		id := string(ref.Role) + "\x00" + ref.Key
		if seen[id] {
			return
		}
		seen[id] = true
		res.Code = append(res.Code, ref)
	}

	if ref, ok := findFunction(in.Generated, in.Query); ok {
		addRef(ref)
	} else {
		res.Warnings = append(res.Warnings, WarnMissingCode+": "+in.Query)
	}
	for _, key := range []string{in.Query + "Params", in.Query + "Row"} {
		if ref, ok := findType(in.Generated, key); ok {
			addRef(ref)
		}
	}
	for _, table := range res.Tables {
		if ref, ok := findType(in.Generated, ModelName(table)); ok {
			addRef(ref)
		}
	}

	if rules != nil {
		extra, err := rules.Extra(ctx, in.Query, res.Tables, candidateKeys(in.Generated))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Warnings = append(res.Warnings, WarnRulesFailed+": "+err.Error())
		}
		for _, key := range extra {
			ref, ok := findKey(in.Generated, key)
			if !ok {
				res.Warnings = append(res.Warnings, WarnUnknownTarget+": "+key)
				continue
			}
			addRef(ref)
		}
	}
	return res, nil
}

func relationsByLowerName(schema *index.File) map[string]string {
	out := map[string]string{}
	for _, name := range schema.Names() {
		if schema.Ranges[name].Kind.IsRelation() {
			lower := strings.ToLower(name)
			if _, taken := out[lower]; !taken {
				out[lower] = name
			}
		}
	}
	return out
}

// findFunction looks for the implementation of query: a Queries method
// first, then a plain function, then a method on any other receiver.
func findFunction(gens []Generated, query string) (CodeRef, bool) {
	for _, g := range gens {
		if ref, ok := lookup(g, "Queries."+query); ok && ref.Type == "function" {
			return ref, true
		}
	}
	for _, g := range gens {
		if ref, ok := lookup(g, query); ok && ref.Type == "function" {
			return ref, true
		}
	}
	for _, g := range gens {
		for _, key := range g.Index.Names() {
			recv, method, ok := strings.Cut(key, ".")
			if ok && recv != "" && method == query {
				ref, _ := lookup(g, key)
				return ref, true
			}
		}
	}
	return CodeRef{}, false
}

func findType(gens []Generated, name string) (CodeRef, bool) {
	for _, g := range gens {
		if ref, ok := lookup(g, name); ok && ref.Type != "function" {
			return ref, true
		}
	}
	return CodeRef{}, false
}

func findKey(gens []Generated, key string) (CodeRef, bool) {
	for _, g := range gens {
		if ref, ok := lookup(g, key); ok {
			return ref, true
		}
	}
	return CodeRef{}, false
}

func lookup(g Generated, key string) (CodeRef, bool) {
	e, ok := g.Index.Lookup(key)
	if !ok {
		return CodeRef{}, false
	}
	name := key
	if _, method, ok := strings.Cut(key, "."); ok {
		name = method
	}
	return CodeRef{Role: g.Role, Key: key, Name: name, Type: codeType(e)}, true
}

func codeType(e index.Entry) string {
	if e.Kind == scan.KindGeneratedFunction {
		return "function"
	}
	switch e.Detail {
	case "struct", "interface":
		return e.Detail
	default:
		return "type"
	}
}

func candidateKeys(gens []Generated) []string {
	var keys []string
	seen := map[string]bool{}
	for _, g := range gens {
		for _, key := range g.Index.Names() {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
