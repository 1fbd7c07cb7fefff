package scan

import (
	"fmt"
	"strings"

	"github.com/jward/sqlcache/internal/source"
)

// scanSchema finds CREATE TABLE / VIEW / TYPE / FUNCTION statements. Each
// entity runs from its CREATE keyword to the ';' that closes the statement at
// parenthesis depth zero. Overloads of a function after the first are named
// with their argument list, e.g. "bump(n int)".
func scanSchema(f *source.File) ([]Entity, error) {
	toks, err := lexSQL(f.Path, f.Content)
	if err != nil {
		return nil, err
	}

	var (
		ents      []Entity
		open      *Entity
		depth     int
		stmtStart = true
		funcs     = map[string]bool{}
	)
	for i, t := range toks {
		if t.kind == tokComment {
			continue
		}
		if stmtStart {
			stmtStart = false
			kind, name, next, ok, err := schemaHeader(f.Path, toks, i)
			if err != nil {
				return nil, err
			}
			if ok {
				if kind == KindFunction {
					key := strings.ToLower(name)
					if funcs[key] {
						name += signature(toks, next)
					}
					funcs[key] = true
				}
				open = &Entity{Name: name, Kind: kind, StartLine: t.line}
			}
		} else if open != nil && depth == 0 && t.upper() == "CREATE" {
			if kind, name, _, ok, _ := schemaHeader(f.Path, toks, i); ok {
				return nil, &ParseError{File: f.Path, Line: t.line,
					Reason: fmt.Sprintf("CREATE %s %s before ';' closing %s", strings.ToUpper(string(kind)), name, open.Name)}
			}
		}
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
			if depth < 0 {
				return nil, &ParseError{File: f.Path, Line: t.line, Reason: "unbalanced ')'"}
			}
		case t.isPunct(";") && depth == 0:
			if open != nil {
				open.EndLine = t.line
				ents = append(ents, *open)
				open = nil
			}
			stmtStart = true
		}
	}
	if open != nil {
		return nil, &ParseError{File: f.Path, Line: open.StartLine,
			Reason: fmt.Sprintf("unterminated CREATE %s %s", strings.ToUpper(string(open.Kind)), open.Name)}
	}
	if depth > 0 {
		return nil, &ParseError{File: f.Path, Line: lastLine(toks), Reason: "unbalanced '(' at end of file"}
	}
	return ents, nil
}

// schemaHeader recognizes
//
//	CREATE [OR REPLACE] [GLOBAL|LOCAL] [TEMP|TEMPORARY|UNLOGGED] TABLE [IF NOT EXISTS] name
//	CREATE [OR REPLACE] [MATERIALIZED] VIEW [IF NOT EXISTS] name
//	CREATE TYPE name
//	CREATE [OR REPLACE] FUNCTION name
//
// starting at toks[i]. next is the index of the token after the name. Other
// statements yield ok=false.
func schemaHeader(file string, toks []token, i int) (kind Kind, name string, next int, ok bool, err error) {
	c := &cursor{toks: toks, i: i}
	if !c.keyword("CREATE") {
		return "", "", 0, false, nil
	}
	line := toks[i].line
	if c.keyword("OR") && !c.keyword("REPLACE") {
		return "", "", 0, false, nil
	}
	c.keyword("GLOBAL", "LOCAL")
	c.keyword("TEMP", "TEMPORARY", "UNLOGGED")

	switch {
	case c.keyword("TABLE"):
		kind = KindTable
	case c.keyword("MATERIALIZED"):
		if !c.keyword("VIEW") {
			return "", "", 0, false, nil
		}
		kind = KindView
	case c.keyword("VIEW"):
		kind = KindView
	case c.keyword("TYPE"):
		kind = KindType
	case c.keyword("FUNCTION"):
		kind = KindFunction
	default:
		return "", "", 0, false, nil
	}

	if c.keyword("IF") {
		if !c.keyword("NOT") || !c.keyword("EXISTS") {
			return "", "", 0, false, &ParseError{File: file, Line: line, Reason: "malformed IF NOT EXISTS"}
		}
	}
	name, ok = c.qualifiedName()
	if !ok {
		return "", "", 0, false, &ParseError{File: file, Line: line,
			Reason: fmt.Sprintf("CREATE %s without a name", strings.ToUpper(string(kind)))}
	}
	return kind, name, c.i, true, nil
}

// signature renders the parenthesized argument list starting at toks[i] as
// "(a int, b text)". It returns "()" when there is none.
func signature(toks []token, i int) string {
	c := &cursor{toks: toks, i: i}
	t, ok := c.cur()
	if !ok || !t.isPunct("(") {
		return "()"
	}
	var b strings.Builder
	depth := 0
	prevWord := false
	for ; c.i < len(toks); c.i++ {
		t := toks[c.i]
		if t.kind == tokComment {
			continue
		}
		word := t.kind != tokPunct && t.kind != tokOther
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		}
		if word && prevWord {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
		if t.isPunct(",") {
			b.WriteByte(' ')
		}
		prevWord = word
		if depth == 0 {
			break
		}
	}
	return b.String()
}

func lastLine(toks []token) int {
	if len(toks) == 0 {
		return 0
	}
	return toks[len(toks)-1].line
}

// cursor walks a token slice, skipping comments.
type cursor struct {
	toks []token
	i    int
}

func (c *cursor) skipComments() {
	for c.i < len(c.toks) && c.toks[c.i].kind == tokComment {
		c.i++
	}
}

func (c *cursor) cur() (token, bool) {
	c.skipComments()
	if c.i >= len(c.toks) {
		return token{}, false
	}
	return c.toks[c.i], true
}

// keyword consumes the current token if it is one of words.
func (c *cursor) keyword(words ...string) bool {
	t, ok := c.cur()
	if !ok {
		return false
	}
	u := t.upper()
	for _, w := range words {
		if u == w {
			c.i++
			return true
		}
	}
	return false
}

func (c *cursor) punct(p string) bool {
	t, ok := c.cur()
	if ok && t.isPunct(p) {
		c.i++
		return true
	}
	return false
}

// qualifiedName consumes name(.name)* and returns the last component.
func (c *cursor) qualifiedName() (string, bool) {
	t, ok := c.cur()
	if !ok || !t.isName() {
		return "", false
	}
	c.i++
	name := t.text
	for {
		save := c.i
		if !c.punct(".") {
			break
		}
		next, ok := c.cur()
		if !ok || !next.isName() {
			c.i = save
			break
		}
		c.i++
		name = next.text
	}
	return name, true
}

// skipParens consumes a balanced parenthesized group starting at '('.
func (c *cursor) skipParens() bool {
	if !c.punct("(") {
		return false
	}
	depth := 1
	for c.i < len(c.toks) && depth > 0 {
		t := c.toks[c.i]
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
		}
		c.i++
	}
	return depth == 0
}
