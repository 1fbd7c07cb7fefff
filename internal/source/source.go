// Package source reads tracked source files and exposes the line model shared
// by the scanner, the index builder and the bundle assembler.
//
// Lines are split on '\n'. A trailing newline does not open a new line and an
// empty file has zero lines. The text of a range is its lines joined with
// '\n', without a trailing newline; '\r' is kept verbatim.
package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
)

// File is one tracked source file read fresh for a run. It is never mutated
// after construction, so workers may share it without locking.
type File struct {
	Path    string
	Content []byte
	Hash    string
	lines   []string
}

// New wraps already-read content. Path is kept as a label only.
func New(path string, content []byte) *File {
	return &File{
		Path:    path,
		Content: content,
		Hash:    Hash(content),
		lines:   SplitLines(content),
	}
}

// TotalLines returns the number of lines in the file.
func (f *File) TotalLines() int {
	return len(f.lines)
}

// Slice returns the verbatim text of lines [start, end], 1-indexed and inclusive.
func (f *File) Slice(start, end int) (string, error) {
	if start < 1 || end < start || end > len(f.lines) {
		return "", fmt.Errorf("range %d-%d outside %s (%d lines)", start, end, f.Path, len(f.lines))
	}
	return strings.Join(f.lines[start-1:end], "\n"), nil
}

// Hash returns the hex SHA-256 digest of content.
func Hash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// HashString is Hash for text already held as a string.
func HashString(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}

// SplitLines splits content into lines without their '\n' terminators.
func SplitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	text := string(content)
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// CountLines returns the line count under the same rules as SplitLines.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// HashRaceError reports a file whose content kept changing while it was read.
type HashRaceError struct {
	Path string
}

func (e *HashRaceError) Error() string {
	return fmt.Sprintf("%s: content changed while reading (retried once)", e.Path)
}

// readFile and stat are swapped in tests to simulate concurrent writers.
var (
	readFile = os.ReadFile
	stat     = os.Stat
)

// Read loads path and verifies that its size and modification time did not
// move during the read. A moving file is retried once and then reported as a
// *HashRaceError.
func Read(path string) (*File, error) {
	for range 2 {
		before, err := stat(path)
		if err != nil {
			return nil, err
		}
		content, err := readFile(path)
		if err != nil {
			return nil, err
		}
		after, err := stat(path)
		if err != nil {
			return nil, err
		}
		if before.Size() == after.Size() &&
			before.ModTime().Equal(after.ModTime()) &&
			int64(len(content)) == after.Size() {
			return New(path, content), nil
		}
	}
	return nil, &HashRaceError{Path: path}
}
