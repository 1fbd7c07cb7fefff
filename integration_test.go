package sqlcache

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqlcache/internal/config"
	"github.com/jward/sqlcache/internal/logging"
	"github.com/jward/sqlcache/internal/source"
)

// newConfiguredProject lays out a project whose file roles come from
// sqlc.yaml and whose settings come from sqlcache.yaml.
func newConfiguredProject(t *testing.T) *testProject {
	t.Helper()
	p := newProject(t, map[string]string{
		"sql/schema.sql":                fixtureSchema,
		"sql/queries.sql":               fixtureQueries,
		"internal/store/models.go":      fixtureModels,
		"internal/store/queries.sql.go": fixtureImpl,
		"sqlc.yaml": `version: "2"
sql:
  - engine: postgresql
    schema: sql/schema.sql
    queries: sql/queries.sql
    gen:
      go:
        package: store
        out: internal/store
`,
		"sqlcache.yaml": `output: build/cache
keep_generations: 1
workers: 2
rules_script: rules.risor
log_level: debug
log_format: json
`,
		"rules.risor": `
extra := []
if query_name == "GetUser" {
	extra.append("Item")
}
extra
`,
	})
	p.out = filepath.Join(p.root, "build", "cache")
	return p
}

func loadConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	v := config.New()
	v.Set(config.KeyRoot, root)
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	return cfg
}

func TestIntegration_ConfiguredBuild(t *testing.T) {
	t.Parallel()
	p := newConfiguredProject(t)
	cfg := loadConfig(t, p.root)

	var logs bytes.Buffer
	logger, err := logging.New(&logs, cfg.LogLevel, cfg.LogFormat)
	require.NoError(t, err)

	e, err := NewFromConfig(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, p.out, e.OutputDir())
	assert.Equal(t, filepath.Join(p.root, "sql", "queries.sql"), e.Paths()[source.RoleQuery])

	rep, err := e.Build(context.Background(), BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, Committed, rep.State)
	assert.Equal(t, "sql/queries.sql", rep.File(source.RoleQuery).Path)
	assert.Equal(t, "internal/store/queries.sql.go", rep.File(source.RoleQueryImpl).Path)

	b := p.bundle("GetUser")
	assert.Equal(t, "sql/queries.sql", b.QueryFile)
	var names []string
	for _, c := range b.GeneratedCode {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"GetUser", "User", "Item"}, names)

	assert.Contains(t, logs.String(), `"msg":"build.done"`)
	assert.Contains(t, logs.String(), `"run_id":"`+rep.RunID+`"`)
	assert.Contains(t, logs.String(), `"msg":"extract.done"`)
}

func TestIntegration_KeepOneGeneration(t *testing.T) {
	t.Parallel()
	p := newConfiguredProject(t)
	cfg := loadConfig(t, p.root)
	e, err := NewFromConfig(cfg, logging.Discard())
	require.NoError(t, err)

	_, err = e.Build(context.Background(), BuildOptions{})
	require.NoError(t, err)
	first := p.current()

	p.replace("sql/schema.sql", "email TEXT NOT NULL", "email TEXT NOT NULL UNIQUE")
	rep, err := e.Build(context.Background(), BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{first}, rep.Pruned)
	assert.Equal(t, []string{p.current()}, p.generations())
}

func TestIntegration_RulesScriptMissing(t *testing.T) {
	t.Parallel()
	p := newConfiguredProject(t)
	cfg := loadConfig(t, p.root)
	cfg.RulesScript = filepath.Join(p.root, "nope.risor")
	_, err := NewFromConfig(cfg, logging.Discard())
	assert.Error(t, err)
}
