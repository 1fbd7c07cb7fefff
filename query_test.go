package sqlcache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqlcache/internal/source"
)

func openReader(t *testing.T, p *testProject) *Reader {
	t.Helper()
	r, err := Open(p.out)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOpen_NoGeneration(t *testing.T) {
	t.Parallel()
	_, err := Open(filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoGeneration))
}

func TestReader_Entity(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	p.build(BuildOptions{})
	r := openReader(t, p)

	assert.Equal(t, p.current(), r.Generation())

	got, err := r.Entity("USERS")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, source.RoleSchema, got[0].Role)
	assert.Equal(t, "table", got[0].Kind)
	assert.Equal(t, 1, got[0].StartLine)
	assert.Equal(t, 4, got[0].EndLine)

	got, err = r.Entity("nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReader_IndexAndBundle(t *testing.T) {
	t.Parallel()
	files := fixtureFiles()
	delete(files, "db/models.go")
	p := newProject(t, files)
	p.build(BuildOptions{})
	r := openReader(t, p)

	ix, err := r.Index(source.RoleQuery)
	require.NoError(t, err)
	assert.Equal(t, "query.sql", ix.FilePath)

	ix, err = r.Index(source.RoleModels)
	require.NoError(t, err)
	assert.Nil(t, ix)

	b, err := r.Bundle("GetUser")
	require.NoError(t, err)
	assert.Equal(t, "GetUser", b.QueryName)

	_, err = r.Bundle("Missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	infos, err := r.Bundles()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "GetItem", infos[0].Query)
}

func TestReader_Dependents(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	p.build(BuildOptions{})
	r := openReader(t, p)

	deps, err := r.Dependents(source.RoleSchema, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"GetUser", "ListUserItems"}, deps)

	deps, err = r.Dependents("", "Item")
	require.NoError(t, err)
	assert.Equal(t, []string{"GetItem", "ListUserItems"}, deps)

	deps, err = r.Dependents(source.RoleQueryImpl, "Queries.GetItem")
	require.NoError(t, err)
	assert.Equal(t, []string{"GetItem"}, deps)

	deps, err = r.Dependents(source.RoleSchema, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"GetItem", "GetUser", "ListUserItems"}, deps)
}

func TestReader_Entities(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	p.build(BuildOptions{})
	r := openReader(t, p)

	ents, err := r.Entities(source.RoleSchema, "")
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "users", ents[0].Name)
	assert.Equal(t, "items", ents[1].Name)

	ents, err = r.Entities("", "table")
	require.NoError(t, err)
	assert.Len(t, ents, 2)

	ents, err = r.Entities(source.RoleModels, "table")
	require.NoError(t, err)
	assert.Empty(t, ents)

	ents, err = r.Entities("", "")
	require.NoError(t, err)
	assert.Len(t, ents, 11)
}

func TestReader_Snippet(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	p.build(BuildOptions{})
	r := openReader(t, p)

	text, err := r.Snippet(source.RoleSchema, "items")
	require.NoError(t, err)
	assert.Equal(t, p.liveSlice("schema.sql", 6, 10), text)

	text, err = r.Snippet(source.RoleQueryImpl, "Queries.GetUser")
	require.NoError(t, err)
	assert.Contains(t, text, "func (q *Queries) GetUser(")

	_, err = r.Snippet(source.RoleModels, "Nobody")
	assert.ErrorContains(t, err, "not inlined")
}

func TestReader_SearchAndSummary(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	rep := p.build(BuildOptions{})
	r := openReader(t, p)

	res, err := r.Search("Get*", nil, source.RoleQuery, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "GetItem", res.Items[0].Name)

	res, err = r.Search("*", []string{"table"}, "", Pagination{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	assert.Len(t, res.Items, 1)

	sum, err := r.Summary()
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, sum.RunID)
	assert.NotEmpty(t, sum.CreatedAt)
	assert.Equal(t, 3, sum.Bundles)
	assert.Len(t, sum.Files, 4)

	runID, err := r.Metadata("run_id")
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, runID)
}

func TestReader_Verify(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	p.build(BuildOptions{})
	r := openReader(t, p)

	v, err := r.Verify("")
	require.NoError(t, err)
	assert.True(t, v.OK(), "%v", v.Stale)
	assert.Equal(t, 7, v.Checked)

	// Editing the schema without a rebuild makes its index and the
	// bundles that inline users stale.
	p.replace("schema.sql", "email TEXT NOT NULL", "email TEXT")
	v, err = r.Verify(p.root)
	require.NoError(t, err)
	assert.False(t, v.OK())
	require.Len(t, v.Stale, 1)
	assert.Equal(t, filepath.Join("index", "schema.index.json"), v.Stale[0].Artifact)
	assert.Contains(t, v.Stale[0].Reason, "changed")
}

func TestReader_SurvivesLaterBuild(t *testing.T) {
	t.Parallel()
	p := newProject(t, fixtureFiles())
	p.build(BuildOptions{})
	r := openReader(t, p)
	gen := r.Generation()

	p.replace("schema.sql", "email TEXT NOT NULL", "email TEXT NOT NULL UNIQUE")
	p.build(BuildOptions{})
	require.NotEqual(t, gen, p.current())

	b, err := r.Bundle("GetUser")
	require.NoError(t, err)
	assert.NotContains(t, b.Tables[0].TableSQL, "UNIQUE")
}
