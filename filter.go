package sqlcache

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/sqlcache/internal/source"
)

// filter matches names against gitignore-style patterns. A nil filter
// matches everything.
type filter struct {
	gi *ignore.GitIgnore
}

func newFilter(patterns []string) *filter {
	if len(patterns) == 0 {
		return nil
	}
	return &filter{gi: ignore.CompileIgnoreLines(patterns...)}
}

func (f *filter) match(name string) bool {
	if f == nil {
		return true
	}
	return f.gi.MatchesPath(name)
}

// matchFile accepts a tracked file by its root-relative path or role name.
func (f *filter) matchFile(role source.Role, rel string) bool {
	return f.match(filepath.ToSlash(rel)) || f.match(string(role))
}
