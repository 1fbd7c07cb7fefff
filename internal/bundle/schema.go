package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jward/sqlcache/internal/index"
)

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode bundle: %w", err)
	}
	return nil
}

var bundleSchema = map[string]any{
	"type": "object",
	"required": []any{
		"query_name", "query_sql", "query_range", "query_file", "tables", "generated_code", "warnings",
	},
	"properties": map[string]any{
		"query_name":  map[string]any{"type": "string", "minLength": 1},
		"query_sql":   map[string]any{"type": "string"},
		"query_range": index.RangeSchema,
		"query_file":  map[string]any{"type": "string"},
		"tables": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"table_name", "range", "file", "table_sql"},
				"properties": map[string]any{
					"table_name": map[string]any{"type": "string"},
					"range":      index.RangeSchema,
					"file":       map[string]any{"type": "string"},
					"table_sql":  map[string]any{"type": "string"},
				},
			},
		},
		"generated_code": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"type", "name", "code", "range", "file"},
				"properties": map[string]any{
					"type":  map[string]any{"enum": []any{"function", "struct", "interface", "type"}},
					"name":  map[string]any{"type": "string"},
					"code":  map[string]any{"type": "string"},
					"range": index.RangeSchema,
					"file":  map[string]any{"type": "string"},
				},
			},
		},
		"warnings": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}
