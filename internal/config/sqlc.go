package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jward/sqlcache/internal/source"
	"github.com/spf13/viper"
)

var sqlcNames = []string{"sqlc.yaml", "sqlc.yml", "sqlc.json"}

// DiscoverSqlc reads role paths from the first sqlc config found in root.
// Both the version 2 "sql" list and the version 1 "packages" list are
// understood; only the first entry is used. Paths are returned relative to
// root. A missing config yields an empty map.
func DiscoverSqlc(root string) (map[source.Role]string, string, error) {
	for _, name := range sqlcNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		roles, err := readSqlc(path)
		if err != nil {
			return nil, "", err
		}
		return roles, path, nil
	}
	return map[source.Role]string{}, "", nil
}

func readSqlc(path string) (map[source.Role]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	roles := map[source.Role]string{}
	var schema, queries, out string
	if entry := firstEntry(v.Get("sql")); entry != nil {
		schema = firstString(entry["schema"])
		queries = firstString(entry["queries"])
		if gen, ok := entry["gen"].(map[string]any); ok {
			if golang, ok := gen["go"].(map[string]any); ok {
				out = firstString(golang["out"])
			}
		}
	} else if entry := firstEntry(v.Get("packages")); entry != nil {
		schema = firstString(entry["schema"])
		queries = firstString(entry["queries"])
		out = firstString(entry["path"])
	} else {
		return nil, fmt.Errorf("%s: no sql or packages entry", filepath.Base(path))
	}

	if schema != "" {
		roles[source.RoleSchema] = filepath.Clean(schema)
	}
	if queries != "" {
		roles[source.RoleQuery] = filepath.Clean(queries)
	}
	if out != "" {
		roles[source.RoleModels] = filepath.Join(out, "models.go")
		if queries != "" {
			roles[source.RoleQueryImpl] = filepath.Join(out, filepath.Base(queries)+".go")
		}
	}
	return roles, nil
}

func firstEntry(v any) map[string]any {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	m, _ := list[0].(map[string]any)
	return m
}

func firstString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		if len(x) > 0 {
			s, _ := x[0].(string)
			return s
		}
	}
	return ""
}
