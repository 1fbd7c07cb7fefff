// Package scan locates named entities and their line ranges in the tracked
// source files. Scanning is purely syntactic: it tracks string literals,
// comments and nesting depth well enough to find boundaries, and never builds
// a full syntax tree of the SQL dialect.
package scan

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/sqlcache/internal/source"
)

// Grammar selects the entity grammar for a file.
type Grammar string

const (
	GrammarSchema    Grammar = "schema"
	GrammarQuery     Grammar = "query"
	GrammarGenerated Grammar = "generated"
)

// Kind is the kind of an extracted entity.
type Kind string

const (
	KindTable             Kind = "table"
	KindView              Kind = "view"
	KindType              Kind = "type"
	KindFunction          Kind = "function"
	KindQuery             Kind = "query"
	KindGeneratedFunction Kind = "generated_function"
	KindGeneratedType     Kind = "generated_type"
)

// IsRelation reports whether entities of kind k can be named in FROM/JOIN.
func (k Kind) IsRelation() bool {
	return k == KindTable || k == KindView
}

// Entity is a named, line-ranged unit of a source file. Lines are 1-indexed
// and inclusive.
type Entity struct {
	Name      string
	Kind      Kind
	Detail    string
	File      string
	StartLine int
	EndLine   int
}

// ParseError reports a malformed entity boundary. It is local to one file.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// Scan extracts the entities of f under grammar g, ordered by start line.
// Any boundary problem is returned as a *ParseError.
func Scan(ctx context.Context, g Grammar, f *source.File) ([]Entity, error) {
	var (
		ents []Entity
		err  error
	)
	switch g {
	case GrammarSchema:
		ents, err = scanSchema(f)
	case GrammarQuery:
		ents, err = scanQueries(f)
	case GrammarGenerated:
		ents, err = scanGenerated(ctx, f)
	default:
		return nil, fmt.Errorf("scan: unknown grammar %q", g)
	}
	if err != nil {
		return nil, err
	}
	for i := range ents {
		ents[i].File = f.Path
	}
	if err := validate(f, ents); err != nil {
		return nil, err
	}
	return ents, nil
}

// validate checks entity ranges: in bounds, one header per line, no
// overlap, and unique names within the file.
func validate(f *source.File, ents []Entity) error {
	sort.SliceStable(ents, func(i, j int) bool {
		return ents[i].StartLine < ents[j].StartLine
	})
	total := f.TotalLines()
	seen := make(map[string]int, len(ents))
	for i, e := range ents {
		if e.StartLine < 1 || e.EndLine < e.StartLine || e.EndLine > total {
			return &ParseError{File: f.Path, Line: e.StartLine,
				Reason: fmt.Sprintf("%s %s has range %d-%d outside 1-%d", e.Kind, e.Name, e.StartLine, e.EndLine, total)}
		}
		if i > 0 {
			prev := ents[i-1]
			if e.StartLine == prev.StartLine {
				return &ParseError{File: f.Path, Line: e.StartLine,
					Reason: fmt.Sprintf("two entity headers on one line (%s and %s)", prev.Name, e.Name)}
			}
			if e.StartLine <= prev.EndLine {
				return &ParseError{File: f.Path, Line: e.StartLine,
					Reason: fmt.Sprintf("%s overlaps %s (ends line %d)", e.Name, prev.Name, prev.EndLine)}
			}
		}
		if line, dup := seen[e.Name]; dup {
			return &ParseError{File: f.Path, Line: e.StartLine,
				Reason: fmt.Sprintf("duplicate entity %q (first at line %d)", e.Name, line)}
		}
		seen[e.Name] = e.StartLine
	}
	return nil
}
