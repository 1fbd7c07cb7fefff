package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagePublish(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".sqlcache")
	d := NewDir(root)

	cur, err := d.Current()
	require.NoError(t, err)
	assert.Empty(t, cur)

	s, err := d.Stage("run1", "")
	require.NoError(t, err)
	require.NoError(t, s.Write(IndexPath("schema"), []byte("schema-index")))
	require.NoError(t, s.Write(BundlePath("Q.cache.json"), []byte("bundle")))

	// Not visible before publish.
	cur, err = d.Current()
	require.NoError(t, err)
	assert.Empty(t, cur)

	require.NoError(t, s.Publish())
	cur, err = d.Current()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "gen-run1"), cur)

	data, err := os.ReadFile(filepath.Join(root, CurrentLink, "index", "schema.index.json"))
	require.NoError(t, err)
	assert.Equal(t, "schema-index", string(data))
}

func TestCarry_HardLinkAndCopy(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	first, err := d.Stage("a", "")
	require.NoError(t, err)
	require.NoError(t, first.Write(BundlePath("Q.cache.json"), []byte("same")))
	require.NoError(t, first.Publish())

	second, err := d.Stage("b", first.Path())
	require.NoError(t, err)
	require.NoError(t, second.Carry(BundlePath("Q.cache.json")))

	a, err := os.Stat(filepath.Join(first.Path(), BundlePath("Q.cache.json")))
	require.NoError(t, err)
	b, err := os.Stat(filepath.Join(second.Path(), BundlePath("Q.cache.json")))
	require.NoError(t, err)
	assert.True(t, os.SameFile(a, b), "carry should hard link")

	// Copy fallback when linking fails.
	linkFile = func(string, string) error { return errors.New("cross-device link") }
	t.Cleanup(func() { linkFile = os.Link })
	third, err := d.Stage("c", first.Path())
	require.NoError(t, err)
	require.NoError(t, third.Carry(BundlePath("Q.cache.json")))
	data, err := os.ReadFile(filepath.Join(third.Path(), BundlePath("Q.cache.json")))
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))

	c, err := os.Stat(filepath.Join(third.Path(), BundlePath("Q.cache.json")))
	require.NoError(t, err)
	assert.False(t, os.SameFile(a, c))
}

func TestCarry_NoPrevious(t *testing.T) {
	t.Parallel()
	s, err := NewDir(t.TempDir()).Stage("x", "")
	require.NoError(t, err)
	assert.Error(t, s.Carry("index/schema.index.json"))
}

func TestStage_Duplicate(t *testing.T) {
	t.Parallel()
	d := NewDir(t.TempDir())
	_, err := d.Stage("x", "")
	require.NoError(t, err)
	_, err = d.Stage("x", "")
	assert.ErrorContains(t, err, "already exists")
}

func TestWrite_Exclusive(t *testing.T) {
	t.Parallel()
	s, err := NewDir(t.TempDir()).Stage("x", "")
	require.NoError(t, err)
	require.NoError(t, s.Write("catalog.db", []byte("1")))
	assert.Error(t, s.Write("catalog.db", []byte("2")))
}

func TestPublishFailureKeepsCurrent(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	good, err := d.Stage("good", "")
	require.NoError(t, err)
	require.NoError(t, good.Publish())

	bad, err := d.Stage("bad", good.Path())
	require.NoError(t, err)
	rename = func(string, string) error { return errors.New("disk on fire") }
	t.Cleanup(func() { rename = os.Rename })

	require.Error(t, bad.Publish())
	require.NoError(t, bad.Abort())

	cur, err := d.Current()
	require.NoError(t, err)
	assert.Equal(t, good.Path(), cur)
	_, err = os.Lstat(filepath.Join(root, tmpLink))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(bad.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestPrune(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	d := NewDir(root)
	base := time.Now().Add(-time.Hour)

	var paths []string
	for i, id := range []string{"one", "two", "three", "four"} {
		s, err := d.Stage(id, "")
		require.NoError(t, err)
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(s.Path(), ts, ts))
		paths = append(paths, s.Path())
	}
	// Publish the oldest: it must survive pruning regardless of age.
	require.NoError(t, os.Symlink("gen-one", filepath.Join(root, CurrentLink)))

	gens, err := d.Generations()
	require.NoError(t, err)
	assert.Equal(t, []string{paths[3], paths[2], paths[1], paths[0]}, gens)

	removed, err := d.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, []string{paths[1]}, removed)

	gens, err = d.Generations()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{paths[0], paths[2], paths[3]}, gens)
}
