package sqlcache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/sqlcache/internal/bundle"
	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/output"
	"github.com/jward/sqlcache/internal/source"
)

const fixtureSchema = `CREATE TABLE users (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL
);

CREATE TABLE items (
    id BIGSERIAL PRIMARY KEY,
    owner_id BIGINT NOT NULL REFERENCES users(id),
    name TEXT NOT NULL
);
`

const fixtureQueries = `-- name: GetItem :one
SELECT * FROM items WHERE id = $1;

-- name: GetUser :one
SELECT * FROM users WHERE id = $1;

-- name: ListUserItems :many
SELECT i.* FROM items i JOIN users u ON u.id = i.owner_id WHERE u.email = $1;
`

const fixtureImpl = `package db

import "context"

type Queries struct{}

func (q *Queries) GetItem(ctx context.Context, id int64) (Item, error) {
	return Item{}, nil
}

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	return User{}, nil
}

func (q *Queries) ListUserItems(ctx context.Context, email string) ([]Item, error) {
	return nil, nil
}
`

const fixtureModels = `package db

type Item struct {
	ID      int64
	OwnerID int64
	Name    string
}

type User struct {
	ID    int64
	Email string
}
`

func fixtureFiles() map[string]string {
	return map[string]string{
		"schema.sql":      fixtureSchema,
		"query.sql":       fixtureQueries,
		"db/query.sql.go": fixtureImpl,
		"db/models.go":    fixtureModels,
	}
}

// testProject is a throwaway sqlc project with its own output directory.
type testProject struct {
	t    *testing.T
	root string
	out  string
}

func newProject(t *testing.T, files map[string]string) *testProject {
	t.Helper()
	root := t.TempDir()
	p := &testProject{t: t, root: root, out: filepath.Join(root, ".sqlcache")}
	for rel, content := range files {
		p.write(rel, content)
	}
	return p
}

func (p *testProject) write(rel, content string) {
	p.t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
}

func (p *testProject) replace(rel, old, with string) {
	p.t.Helper()
	data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(rel)))
	require.NoError(p.t, err)
	require.Contains(p.t, string(data), old)
	p.write(rel, strings.Replace(string(data), old, with, 1))
}

func (p *testProject) engine(opts ...Option) *Engine {
	p.t.Helper()
	e, err := New(p.root, p.out, append([]Option{WithWorkers(4)}, opts...)...)
	require.NoError(p.t, err)
	return e
}

func (p *testProject) build(opts BuildOptions, eopts ...Option) *Report {
	p.t.Helper()
	rep, err := p.engine(eopts...).Build(context.Background(), opts)
	require.NoError(p.t, err)
	return rep
}

func (p *testProject) current() string {
	p.t.Helper()
	dir, err := output.NewDir(p.out).Current()
	require.NoError(p.t, err)
	require.NotEmpty(p.t, dir, "no generation published")
	return dir
}

func (p *testProject) generations() []string {
	p.t.Helper()
	gens, err := output.NewDir(p.out).Generations()
	require.NoError(p.t, err)
	return gens
}

func (p *testProject) bundle(query string) *bundle.Bundle {
	p.t.Helper()
	b, err := bundle.Load(filepath.Join(p.current(), output.BundlePath(bundle.FileName(query))))
	require.NoError(p.t, err)
	return b
}

func (p *testProject) bundlePath(query string) string {
	return filepath.Join(p.current(), output.BundlePath(bundle.FileName(query)))
}

func (p *testProject) index(role source.Role) *index.File {
	p.t.Helper()
	ix, err := index.Load(filepath.Join(p.current(), output.IndexPath(string(role))))
	require.NoError(p.t, err)
	return ix
}

func (p *testProject) raw(rel string) []byte {
	p.t.Helper()
	data, err := os.ReadFile(filepath.Join(p.current(), rel))
	require.NoError(p.t, err)
	return data
}

// liveSlice returns lines [start, end] of a project file.
func (p *testProject) liveSlice(rel string, start, end int) string {
	p.t.Helper()
	f, err := source.Read(filepath.Join(p.root, filepath.FromSlash(rel)))
	require.NoError(p.t, err)
	text, err := f.Slice(start, end)
	require.NoError(p.t, err)
	return text
}
