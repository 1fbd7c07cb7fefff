package scan

import (
	"regexp"
	"strings"

	"github.com/jward/sqlcache/internal/source"
)

var (
	// queryHeader matches "-- name: GetItemInfo :one".
	queryHeader = regexp.MustCompile(`^--\s*name:\s*(\w+)\s+:(\w+)\s*$`)
	// headerPrefix spots header attempts so malformed ones are reported.
	headerPrefix = regexp.MustCompile(`^--\s*name:`)
	headerAny    = regexp.MustCompile(`name:\s*\w+\s*:\w+`)
)

// scanQueries splits an annotated query file at its "-- name:" headers. A
// query runs from its header to the line before the next header, or to the
// end of the file. Headers are only recognized as the first token on a line
// and outside strings and block comments.
func scanQueries(f *source.File) ([]Entity, error) {
	toks, err := lexSQL(f.Path, f.Content)
	if err != nil {
		return nil, err
	}

	var ents []Entity
	prevLine := 0
	for _, t := range toks {
		first := t.line != prevLine
		prevLine = t.line
		if t.kind != tokComment || !first {
			continue
		}
		text := strings.TrimRight(t.text, "\r")
		if !headerPrefix.MatchString(text) {
			continue
		}
		if len(headerAny.FindAllString(text, -1)) > 1 {
			return nil, &ParseError{File: f.Path, Line: t.line, Reason: "multiple query headers on one line"}
		}
		m := queryHeader.FindStringSubmatch(text)
		if m == nil {
			return nil, &ParseError{File: f.Path, Line: t.line,
				Reason: "malformed query header, want \"-- name: <Name> :<arity>\""}
		}
		if n := len(ents); n > 0 {
			ents[n-1].EndLine = t.line - 1
		}
		ents = append(ents, Entity{Name: m[1], Kind: KindQuery, Detail: m[2], StartLine: t.line})
	}
	if n := len(ents); n > 0 {
		ents[n-1].EndLine = f.TotalLines()
	}
	return ents, nil
}
