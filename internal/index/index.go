// Package index turns scanned entities into IndexFile artifacts and reads
// them back.
package index

import (
	"fmt"
	"os"
	"sort"

	"github.com/jward/sqlcache/internal/scan"
	"github.com/jward/sqlcache/internal/source"
)

// Range is an inclusive, 1-indexed line range.
type Range struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Entry is one indexed entity.
type Entry struct {
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Kind      scan.Kind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Hash      string    `json:"hash"`
}

// Range returns the entry's line range.
func (e Entry) Range() Range {
	return Range{StartLine: e.StartLine, EndLine: e.EndLine}
}

// File is the IndexFile artifact for one tracked source file.
type File struct {
	FilePath    string           `json:"file_path"`
	TotalLines  int              `json:"total_lines"`
	ContentHash string           `json:"content_hash"`
	Ranges      map[string]Entry `json:"ranges"`
}

// Build produces the IndexFile for f from its scanned entities. The result is
// a pure function of f and ents.
func Build(f *source.File, ents []scan.Entity) (*File, error) {
	ix := &File{
		FilePath:    f.Path,
		TotalLines:  f.TotalLines(),
		ContentHash: f.Hash,
		Ranges:      make(map[string]Entry, len(ents)),
	}
	for _, e := range ents {
		if _, dup := ix.Ranges[e.Name]; dup {
			return nil, &scan.ParseError{File: f.Path, Line: e.StartLine, Reason: fmt.Sprintf("duplicate entity %q", e.Name)}
		}
		text, err := f.Slice(e.StartLine, e.EndLine)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", f.Path, err)
		}
		ix.Ranges[e.Name] = Entry{
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
			Kind:      e.Kind,
			Detail:    e.Detail,
			Hash:      source.HashString(text),
		}
	}
	return ix, nil
}

// Lookup returns the entry named name.
func (ix *File) Lookup(name string) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	e, ok := ix.Ranges[name]
	return e, ok
}

// Names returns the entity names ordered by start line.
func (ix *File) Names() []string {
	if ix == nil {
		return nil
	}
	names := make([]string, 0, len(ix.Ranges))
	for name := range ix.Ranges {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := ix.Ranges[names[i]], ix.Ranges[names[j]]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return names[i] < names[j]
	})
	return names
}

// Entities rebuilds scan entities from the index, ordered by start line.
func (ix *File) Entities() []scan.Entity {
	names := ix.Names()
	ents := make([]scan.Entity, 0, len(names))
	for _, name := range names {
		e := ix.Ranges[name]
		ents = append(ents, scan.Entity{
			Name:      name,
			Kind:      e.Kind,
			Detail:    e.Detail,
			File:      ix.FilePath,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
		})
	}
	return ents
}

// Marshal returns the canonical serialized form.
func (ix *File) Marshal() ([]byte, error) {
	return Encode(ix)
}

// Unmarshal validates data against the IndexFile schema and decodes it.
func Unmarshal(data []byte) (*File, error) {
	if err := ValidateJSON(fileSchema, data); err != nil {
		return nil, err
	}
	var ix File
	if err := decode(data, &ix); err != nil {
		return nil, err
	}
	if ix.Ranges == nil {
		ix.Ranges = map[string]Entry{}
	}
	return &ix, nil
}

// Load reads and validates an IndexFile from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ix, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", path, err)
	}
	return ix, nil
}

// CheckBounds reports the first entry that falls outside the file.
func (ix *File) CheckBounds() error {
	for _, name := range ix.Names() {
		e := ix.Ranges[name]
		if e.StartLine < 1 || e.EndLine < e.StartLine || e.EndLine > ix.TotalLines {
			return fmt.Errorf("index %s: %s range %d-%d outside 1-%d", ix.FilePath, name, e.StartLine, e.EndLine, ix.TotalLines)
		}
	}
	return nil
}
