// Package bundle assembles per-query cache records that inline a query, the
// relations it touches and the generated code implementing it.
package bundle

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/resolve"
	"github.com/jward/sqlcache/internal/source"
)

// TableRef is one inlined relation definition.
type TableRef struct {
	TableName string      `json:"table_name"`
	Range     index.Range `json:"range"`
	File      string      `json:"file"`
	TableSQL  string      `json:"table_sql"`
}

// CodeRef is one inlined generated declaration.
type CodeRef struct {
	Type  string      `json:"type"`
	Name  string      `json:"name"`
	Code  string      `json:"code"`
	Range index.Range `json:"range"`
	File  string      `json:"file"`
}

// Bundle is the QueryCacheRecord for one query.
type Bundle struct {
	QueryName     string      `json:"query_name"`
	QuerySQL      string      `json:"query_sql"`
	QueryRange    index.Range `json:"query_range"`
	QueryFile     string      `json:"query_file"`
	Tables        []TableRef  `json:"tables"`
	GeneratedCode []CodeRef   `json:"generated_code"`
	Warnings      []string    `json:"warnings"`
}

// Located pairs a live source file with the index built from it.
type Located struct {
	File  *source.File
	Index *index.File
}

// Sources maps each role to its live file and index. Absent roles are
// missing from the map.
type Sources map[source.Role]Located

func (s Sources) slice(role source.Role, name string) (index.Entry, string, string, error) {
	loc, ok := s[role]
	if !ok || loc.File == nil || loc.Index == nil {
		return index.Entry{}, "", "", fmt.Errorf("no %s source for %s", role, name)
	}
	if loc.Index.ContentHash != loc.File.Hash {
		return index.Entry{}, "", "", fmt.Errorf("index for %s is stale", loc.File.Path)
	}
	e, ok := loc.Index.Lookup(name)
	if !ok {
		return index.Entry{}, "", "", fmt.Errorf("%s not in %s index", name, role)
	}
	text, err := loc.File.Slice(e.StartLine, e.EndLine)
	if err != nil {
		return index.Entry{}, "", "", err
	}
	return e, text, loc.File.Path, nil
}

// Assemble builds the bundle for query from its resolved dependencies. Every
// snippet is sliced from the live file content.
func Assemble(query string, res resolve.Result, src Sources) (*Bundle, error) {
	qe, qtext, qfile, err := src.slice(source.RoleQuery, query)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", query, err)
	}
	b := &Bundle{
		QueryName:     query,
		QuerySQL:      qtext,
		QueryRange:    qe.Range(),
		QueryFile:     qfile,
		Tables:        []TableRef{},
		GeneratedCode: []CodeRef{},
		Warnings:      append([]string{}, res.Warnings...),
	}
	for _, table := range res.Tables {
		e, text, file, err := src.slice(source.RoleSchema, table)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", query, err)
		}
		b.Tables = append(b.Tables, TableRef{TableName: table, Range: e.Range(), File: file, TableSQL: text})
	}
	for _, ref := range res.Code {
		e, text, file, err := src.slice(ref.Role, ref.Key)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", query, err)
		}
		b.GeneratedCode = append(b.GeneratedCode, CodeRef{Type: ref.Type, Name: ref.Name, Code: text, Range: e.Range(), File: file})
	}
	return b, nil
}

// Fingerprint digests everything a query's bundle is built from: the index
// entries of the query, its relations and its code, plus the warnings. Two
// runs with equal fingerprints produce identical bundles, so the fingerprint
// decides whether a bundle must be reassembled.
func Fingerprint(query string, res resolve.Result, src Sources) string {
	var b strings.Builder
	write := func(parts ...string) {
		b.WriteString(strings.Join(parts, "\x00"))
		b.WriteByte('\n')
	}
	entry := func(tag string, role source.Role, name string) {
		loc := src[role]
		path := ""
		if loc.Index != nil {
			path = loc.Index.FilePath
		}
		e, ok := loc.Index.Lookup(name)
		if !ok {
			write(tag, path, name, "missing")
			return
		}
		write(tag, path, name, strconv.Itoa(e.StartLine), strconv.Itoa(e.EndLine), e.Hash)
	}

	entry("query", source.RoleQuery, query)
	for _, table := range res.Tables {
		entry("table", source.RoleSchema, table)
	}
	for _, ref := range res.Code {
		entry("code:"+ref.Type+":"+ref.Name, ref.Role, ref.Key)
	}
	for _, w := range res.Warnings {
		write("warning", w)
	}
	return source.HashString(b.String())
}

// Marshal returns the canonical serialized form.
func (b *Bundle) Marshal() ([]byte, error) {
	return index.Encode(b)
}

// Unmarshal validates data against the bundle schema and decodes it.
func Unmarshal(data []byte) (*Bundle, error) {
	if err := index.ValidateJSON(bundleSchema, data); err != nil {
		return nil, err
	}
	var b Bundle
	if err := decodeStrict(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Load reads and validates a bundle from disk.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", path, err)
	}
	return b, nil
}

// FileName is the artifact name of query's bundle.
func FileName(query string) string {
	return query + ".cache.json"
}
