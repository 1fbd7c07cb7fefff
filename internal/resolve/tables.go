package resolve

import (
	"strings"

	"github.com/jward/sqlcache/internal/scan"
)

// parenFuncs take FROM as an argument separator rather than a clause.
var parenFuncs = map[string]bool{
	"EXTRACT":   true,
	"SUBSTRING": true,
	"TRIM":      true,
	"OVERLAY":   true,
	"POSITION":  true,
}

// notRelations are bare words that can follow a reference keyword without
// naming a relation.
var notRelations = map[string]bool{
	"SELECT":  true,
	"VALUES":  true,
	"SET":     true,
	"WHERE":   true,
	"LATERAL": true,
	"ONLY":    true,
	"DEFAULT": true,
}

// ReferencedTables returns the relation names a query's text refers to in
// FROM, JOIN, INTO and UPDATE positions, in order of first appearance and
// de-duplicated case-insensitively. Names bound by the query's own WITH
// clauses are excluded even when a real table shares the name.
func ReferencedTables(text string) ([]string, error) {
	all, err := scan.Lex("", []byte(text))
	if err != nil {
		return nil, err
	}
	toks := all[:0:0]
	for _, t := range all {
		if t.Kind != scan.TokenComment {
			toks = append(toks, t)
		}
	}

	ctes := cteNames(toks)
	var (
		out    []string
		seen   = map[string]bool{}
		parens []bool // true when the paren group belongs to a parenFuncs call
	)
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] || ctes[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for i, t := range toks {
		switch {
		case t.IsPunct("("):
			parens = append(parens, i > 0 && parenFuncs[toks[i-1].Upper()])
			continue
		case t.IsPunct(")"):
			if n := len(parens); n > 0 {
				parens = parens[:n-1]
			}
			continue
		}

		prev := ""
		if i > 0 {
			prev = toks[i-1].Upper()
		}
		switch t.Upper() {
		case "FROM":
			if prev == "DISTINCT" || (len(parens) > 0 && parens[len(parens)-1]) {
				continue
			}
			for _, name := range fromList(toks, i+1) {
				add(name)
			}
		case "JOIN":
			if name, ok := relationAt(toks, i+1, true); ok {
				add(name)
			}
		case "INTO":
			if name, ok := relationAt(toks, i+1, false); ok {
				add(name)
			}
		case "UPDATE":
			// DO UPDATE SET, FOR [NO KEY] UPDATE and ON UPDATE are not targets.
			if prev == "DO" || prev == "FOR" || prev == "KEY" || prev == "ON" {
				continue
			}
			if name, ok := relationAt(toks, i+1, false); ok {
				add(name)
			}
		}
	}
	return out, nil
}

// fromList walks a comma-separated FROM list starting at toks[i] and returns
// the relation names in it. Subqueries and table functions are stepped over;
// their own FROM clauses are picked up by the caller's linear walk.
func fromList(toks []scan.Token, i int) []string {
	var names []string
	for {
		c := &cur{toks: toks, i: i}
		c.word("ONLY")
		c.word("LATERAL")
		switch {
		case c.is("("):
			if !c.skipGroup() {
				return names
			}
		default:
			name, ok := c.qualified()
			if !ok {
				return names
			}
			if c.is("(") {
				// Table function.
				if !c.skipGroup() {
					return names
				}
			} else {
				names = append(names, name)
			}
		}
		c.alias()
		if !c.is(",") {
			return names
		}
		i = c.i + 1
	}
}

// relationAt reads the relation named at toks[i]. With notCall set, a name
// followed by '(' is a function call and yields ok=false.
func relationAt(toks []scan.Token, i int, notCall bool) (string, bool) {
	c := &cur{toks: toks, i: i}
	c.word("ONLY")
	c.word("LATERAL")
	name, ok := c.qualified()
	if !ok {
		return "", false
	}
	if notCall && c.is("(") {
		return "", false
	}
	return name, true
}

// cteNames collects every name bound by a WITH clause anywhere in the query:
//
//	WITH [RECURSIVE] name [(cols)] AS [NOT] [MATERIALIZED] ( ... ) [, ...]
func cteNames(toks []scan.Token) map[string]bool {
	names := map[string]bool{}
	for i, t := range toks {
		if t.Upper() != "WITH" {
			continue
		}
		c := &cur{toks: toks, i: i + 1}
		c.word("RECURSIVE")
		for {
			if c.i >= len(toks) || !toks[c.i].IsName() {
				break
			}
			name := toks[c.i].Text
			c.i++
			if c.is("(") && !c.skipGroup() {
				break
			}
			if !c.word("AS") {
				break
			}
			c.word("NOT")
			c.word("MATERIALIZED")
			if !c.is("(") || !c.skipGroup() {
				break
			}
			names[strings.ToLower(name)] = true
			if !c.is(",") {
				break
			}
			c.i++
		}
	}
	return names
}

type cur struct {
	toks []scan.Token
	i    int
}

func (c *cur) is(p string) bool {
	return c.i < len(c.toks) && c.toks[c.i].IsPunct(p)
}

func (c *cur) word(w string) bool {
	if c.i < len(c.toks) && c.toks[c.i].Upper() == w {
		c.i++
		return true
	}
	return false
}

// qualified reads name(.name)* and returns the last component.
func (c *cur) qualified() (string, bool) {
	if c.i >= len(c.toks) || !c.toks[c.i].IsName() || notRelations[c.toks[c.i].Upper()] {
		return "", false
	}
	name := c.toks[c.i].Text
	c.i++
	for c.is(".") && c.i+1 < len(c.toks) && c.toks[c.i+1].IsName() {
		name = c.toks[c.i+1].Text
		c.i += 2
	}
	return name, true
}

// skipGroup steps over a balanced parenthesized group starting at '('.
func (c *cur) skipGroup() bool {
	depth := 0
	for ; c.i < len(c.toks); c.i++ {
		switch {
		case c.toks[c.i].IsPunct("("):
			depth++
		case c.toks[c.i].IsPunct(")"):
			depth--
			if depth == 0 {
				c.i++
				return true
			}
		}
	}
	return false
}

// clauseWords end a FROM item; they are never aliases.
var clauseWords = map[string]bool{
	"WHERE": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"CROSS": true, "NATURAL": true, "ON": true, "USING": true, "GROUP": true, "ORDER": true,
	"HAVING": true, "LIMIT": true, "OFFSET": true, "UNION": true, "INTERSECT": true,
	"EXCEPT": true, "RETURNING": true, "SET": true, "WINDOW": true, "FOR": true,
	"TABLESAMPLE": true, "FETCH": true, "VALUES": true, "SELECT": true, "DO": true,
	"WITH": true, "DEFAULT": true, "OVERRIDING": true,
}

// alias skips an optional [AS] alias [(cols)].
func (c *cur) alias() {
	explicit := c.word("AS")
	if c.i >= len(c.toks) || !c.toks[c.i].IsName() {
		return
	}
	if !explicit && clauseWords[c.toks[c.i].Upper()] {
		return
	}
	c.i++
	if c.is("(") {
		c.skipGroup()
	}
}
