package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/scan"
)

func entry(kind scan.Kind, detail string, start, end int) index.Entry {
	return index.Entry{StartLine: start, EndLine: end, Kind: kind, Detail: detail, Hash: "h"}
}

func fixtures() (*index.File, []Generated) {
	schema := &index.File{FilePath: "schema.sql", TotalLines: 100, Ranges: map[string]index.Entry{
		"items":        entry(scan.KindTable, "", 1, 10),
		"Tags":         entry(scan.KindTable, "", 11, 20),
		"active_items": entry(scan.KindView, "", 21, 22),
		"item_status":  entry(scan.KindType, "", 23, 23),
	}}
	impl := &index.File{FilePath: "db/query.sql.go", TotalLines: 200, Ranges: map[string]index.Entry{
		"Queries.GetItemInfo": entry(scan.KindGeneratedFunction, "method", 1, 50),
		"GetItemInfoRow":      entry(scan.KindGeneratedType, "struct", 51, 55),
		"ListItemsParams":     entry(scan.KindGeneratedType, "struct", 56, 60),
		"Queries.ListItems":   entry(scan.KindGeneratedFunction, "method", 61, 80),
		"Store.ArchiveItem":   entry(scan.KindGeneratedFunction, "method", 81, 90),
		"CountItems":          entry(scan.KindGeneratedFunction, "function", 91, 95),
	}}
	models := &index.File{FilePath: "db/models.go", TotalLines: 40, Ranges: map[string]index.Entry{
		"Item":       entry(scan.KindGeneratedType, "struct", 1, 10),
		"Tag":        entry(scan.KindGeneratedType, "struct", 11, 15),
		"ItemStatus": entry(scan.KindGeneratedType, "type", 16, 18),
		"DBTX":       entry(scan.KindGeneratedType, "interface", 19, 25),
	}}
	return schema, []Generated{{Role: "query_impl", Index: impl}, {Role: "models", Index: models}}
}

func TestResolve_Full(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	res, err := Resolve(context.Background(), Input{
		Query:     "GetItemInfo",
		Text:      "-- name: GetItemInfo :one\nSELECT i.* FROM items i JOIN tags t ON t.id = i.tag_id WHERE i.id = $1;",
		Schema:    schema,
		Generated: gens,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"items", "Tags"}, res.Tables)
	assert.Equal(t, []CodeRef{
		{Role: "query_impl", Key: "Queries.GetItemInfo", Name: "GetItemInfo", Type: "function"},
		{Role: "query_impl", Key: "GetItemInfoRow", Name: "GetItemInfoRow", Type: "struct"},
		{Role: "models", Key: "Item", Name: "Item", Type: "struct"},
		{Role: "models", Key: "Tag", Name: "Tag", Type: "struct"},
	}, res.Code)
	assert.Empty(t, res.Warnings)
}

func TestResolve_Warnings(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	res, err := Resolve(context.Background(), Input{
		Query:     "Orphan",
		Text:      "SELECT * FROM items JOIN ghosts ON true JOIN item_status ON true",
		Schema:    schema,
		Generated: gens,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"items"}, res.Tables)
	assert.Equal(t, []string{
		"UnresolvedDependency: ghosts",
		"UnresolvedDependency: item_status",
		"MissingGeneratedCode: Orphan",
	}, res.Warnings)
	require.Len(t, res.Code, 1)
	assert.Equal(t, "Item", res.Code[0].Key)
}

func TestResolve_FunctionLookupOrder(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	tests := []struct {
		query string
		key   string
	}{
		{"ListItems", "Queries.ListItems"},
		{"CountItems", "CountItems"},
		{"ArchiveItem", "Store.ArchiveItem"},
	}
	for _, tt := range tests {
		res, err := Resolve(context.Background(), Input{Query: tt.query, Text: "SELECT 1", Schema: schema, Generated: gens}, nil)
		require.NoError(t, err)
		require.NotEmpty(t, res.Code, tt.query)
		assert.Equal(t, tt.key, res.Code[0].Key, tt.query)
		assert.Equal(t, "function", res.Code[0].Type, tt.query)
	}
}

func TestResolve_ViewsResolve(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	res, err := Resolve(context.Background(), Input{Query: "X", Text: "SELECT * FROM ACTIVE_ITEMS", Schema: schema, Generated: gens}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"active_items"}, res.Tables)
}

func TestResolve_CTEShadowingRealTable(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	res, err := Resolve(context.Background(), Input{
		Query:     "Shadow",
		Text:      "WITH items AS (SELECT * FROM tags) SELECT * FROM items",
		Schema:    schema,
		Generated: gens,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tags"}, res.Tables)
}

func TestResolve_NoSources(t *testing.T) {
	t.Parallel()
	res, err := Resolve(context.Background(), Input{Query: "Q", Text: "SELECT * FROM items"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Tables)
	assert.Empty(t, res.Code)
	assert.Equal(t, []string{"UnresolvedDependency: items", "MissingGeneratedCode: Q"}, res.Warnings)
}

type stubRules struct {
	keys []string
	err  error

	gotTables     []string
	gotCandidates []string
}

func (s *stubRules) Extra(_ context.Context, _ string, tables, candidates []string) ([]string, error) {
	s.gotTables = tables
	s.gotCandidates = candidates
	return s.keys, s.err
}

func TestResolve_Rules(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	rules := &stubRules{keys: []string{"DBTX", "ItemStatus", "Nope", "Item"}}
	res, err := Resolve(context.Background(), Input{
		Query: "GetItemInfo", Text: "SELECT * FROM items", Schema: schema, Generated: gens,
	}, rules)
	require.NoError(t, err)

	assert.Equal(t, []string{"items"}, rules.gotTables)
	assert.Contains(t, rules.gotCandidates, "Queries.GetItemInfo")
	assert.Contains(t, rules.gotCandidates, "DBTX")
	assert.IsIncreasing(t, rules.gotCandidates)

	var keys []string
	for _, c := range res.Code {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"Queries.GetItemInfo", "GetItemInfoRow", "Item", "DBTX", "ItemStatus"}, keys)
	assert.Equal(t, []string{"UnknownGeneratedCode: Nope"}, res.Warnings)
	assert.Equal(t, "interface", res.Code[3].Type)
	assert.Equal(t, "type", res.Code[4].Type)
}

func TestResolve_RulesError(t *testing.T) {
	t.Parallel()
	schema, gens := fixtures()
	res, err := Resolve(context.Background(), Input{
		Query: "GetItemInfo", Text: "SELECT 1", Schema: schema, Generated: gens,
	}, &stubRules{err: errors.New("boom")})
	require.NoError(t, err)
	assert.Equal(t, []string{"RulesScriptError: boom"}, res.Warnings)
}
