package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqlcache/internal/resolve"
)

var _ resolve.Rules = (*Script)(nil)

func TestExtra_List(t *testing.T) {
	t.Parallel()
	s := FromSource("inline", `[query_name + "Params", model_name(tables[0]), "DBTX"]`)
	keys, err := s.Extra(context.Background(), "GetItemInfo", []string{"user_accounts"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"GetItemInfoParams", "UserAccount", "DBTX"}, keys)
}

func TestExtra_SingleAndNil(t *testing.T) {
	t.Parallel()
	keys, err := FromSource("one", `"DBTX"`).Extra(context.Background(), "Q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"DBTX"}, keys)

	keys, err = FromSource("none", `nil`).Extra(context.Background(), "Q", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestExtra_Candidates(t *testing.T) {
	t.Parallel()
	s := FromSource("filter", `
extra := []
for _, c := range candidates {
	if c != query_name && strings.has_prefix(c, query_name) {
		extra.append(c)
	}
}
extra
`)
	keys, err := s.Extra(context.Background(), "ListItems", nil, []string{"ListItems", "ListItemsRow", "ListTags"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ListItemsRow"}, keys)
}

func TestExtra_ShadowedBuiltin(t *testing.T) {
	t.Parallel()
	_, err := FromSource("shadow", "keys := []\nkeys.append(\"User\")\nkeys\n").Extra(context.Background(), "Q", nil, nil)
	assert.ErrorContains(t, err, "rules: script shadow")
	assert.ErrorContains(t, err, `"keys" already exists`)
}

func TestExtra_BadResult(t *testing.T) {
	t.Parallel()
	_, err := FromSource("bad", `42`).Extra(context.Background(), "Q", nil, nil)
	assert.ErrorContains(t, err, "must be a list of strings")

	_, err = FromSource("bad-item", `["a", 1]`).Extra(context.Background(), "Q", nil, nil)
	assert.ErrorContains(t, err, "result item 1")
}

func TestExtra_ScriptError(t *testing.T) {
	t.Parallel()
	_, err := FromSource("broken", `undefined_thing + 1`).Extra(context.Background(), "Q", nil, nil)
	assert.ErrorContains(t, err, "rules: script broken")
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.risor")
	require.NoError(t, os.WriteFile(path, []byte(`[query_name + "Row"]`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FromSource("x", `[query_name + "Row"]`).Hash(), s.Hash())

	keys, err := s.Extra(context.Background(), "GetItemInfo", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"GetItemInfoRow"}, keys)

	_, err = Load(filepath.Join(dir, "missing.risor"))
	assert.Error(t, err)
}
