// Package output manages the on-disk generations of committed artifacts.
//
// Layout under the output directory:
//
//	current           symlink to the published generation
//	gen-<run-id>/     one complete artifact set per successful run
//
// A run stages a fresh generation directory, fills it, and publishes it by
// swapping the current symlink with a rename. Readers that resolve current
// once always see one complete generation.
package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// CurrentLink names the symlink to the published generation.
	CurrentLink = "current"

	genPrefix = "gen-"
	tmpLink   = CurrentLink + ".tmp"
)

// Artifact subdirectories inside a generation.
const (
	IndexDir   = "index"
	BundlesDir = "bundles"
	CatalogDB  = "catalog.db"
)

// File operations, replaceable in tests.
var (
	linkFile = os.Link
	symlink  = os.Symlink
	rename   = os.Rename
)

// Dir is an output directory holding generations.
type Dir struct {
	root string
}

// NewDir returns a handle on root. Nothing is created until Stage.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the output directory path.
func (d *Dir) Root() string {
	return d.root
}

// Current returns the path of the published generation, or "" when nothing
// has been published.
func (d *Dir) Current() (string, error) {
	target, err := os.Readlink(filepath.Join(d.root, CurrentLink))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s link: %w", CurrentLink, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(d.root, target)
	}
	return target, nil
}

// Stage creates a new, unpublished generation for runID. prev is the
// published generation to carry unchanged artifacts from, or "".
func (d *Dir) Stage(runID, prev string) (*Staging, error) {
	name := genPrefix + runID
	dir := filepath.Join(d.root, name)
	if _, err := os.Lstat(dir); err == nil {
		return nil, fmt.Errorf("stage generation: %s already exists", dir)
	}
	for _, sub := range []string{IndexDir, BundlesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("stage generation: %w", err)
		}
	}
	return &Staging{dir: d, name: name, path: dir, prev: prev}, nil
}

// Generations lists generation directories, newest first by modification
// time, ties broken by name.
func (d *Dir) Generations() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	type gen struct {
		path string
		mod  int64
	}
	var gens []gen
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		gens = append(gens, gen{path: filepath.Join(d.root, e.Name()), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(gens, func(i, j int) bool {
		if gens[i].mod != gens[j].mod {
			return gens[i].mod > gens[j].mod
		}
		return gens[i].path > gens[j].path
	})
	out := make([]string, len(gens))
	for i, g := range gens {
		out[i] = g.path
	}
	return out, nil
}

// Prune removes generations beyond the newest keep, never removing the
// published one. It returns the removed paths.
func (d *Dir) Prune(keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	current, err := d.Current()
	if err != nil {
		return nil, err
	}
	gens, err := d.Generations()
	if err != nil {
		return nil, err
	}
	var removed []string
	kept := 0
	for _, g := range gens {
		if g == current || kept < keep {
			kept++
			continue
		}
		if err := os.RemoveAll(g); err != nil {
			return removed, fmt.Errorf("prune %s: %w", g, err)
		}
		removed = append(removed, g)
	}
	return removed, nil
}

// Staging is a generation being built. It is invisible to readers until
// Publish succeeds.
type Staging struct {
	dir  *Dir
	name string
	path string
	prev string
}

// Path returns the staging directory.
func (s *Staging) Path() string {
	return s.path
}

// Name returns the generation directory name.
func (s *Staging) Name() string {
	return s.name
}

// Write stores data at rel inside the generation and syncs it to disk.
func (s *Staging) Write(rel string, data []byte) error {
	path := filepath.Join(s.path, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", rel, err)
	}
	return nil
}

// Carry brings rel over unchanged from the previous generation: a hard link
// when possible, a byte copy otherwise.
func (s *Staging) Carry(rel string) error {
	if s.prev == "" {
		return fmt.Errorf("carry %s: no previous generation", rel)
	}
	src := filepath.Join(s.prev, rel)
	dst := filepath.Join(s.path, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("carry %s: %w", rel, err)
	}
	if err := linkFile(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// Publish makes this generation current with an atomic symlink swap.
func (s *Staging) Publish() error {
	tmp := filepath.Join(s.dir.root, tmpLink)
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("publish: clear %s: %w", tmpLink, err)
	}
	if err := symlink(s.name, tmp); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := rename(tmp, filepath.Join(s.dir.root, CurrentLink)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Abort discards the staged generation.
func (s *Staging) Abort() error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("abort %s: %w", s.name, err)
	}
	return nil
}

// IndexPath is the path of a role's index inside a generation.
func IndexPath(role string) string {
	return filepath.Join(IndexDir, role+".index.json")
}

// BundlePath is the path of a bundle inside a generation.
func BundlePath(fileName string) string {
	return filepath.Join(BundlesDir, fileName)
}
