package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Encode serializes v in the canonical artifact form: two-space indent,
// sorted map keys, no HTML escaping, trailing newline. Identical values
// always encode to identical bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// ValidateJSON checks data against a JSON schema given as a Go value.
func ValidateJSON(schema map[string]any, data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("artifact failed validation: %s", strings.Join(details, "; "))
}

// RangeSchema describes a {start_line, end_line} object.
var RangeSchema = map[string]any{
	"type":     "object",
	"required": []any{"start_line", "end_line"},
	"properties": map[string]any{
		"start_line": map[string]any{"type": "integer", "minimum": 1},
		"end_line":   map[string]any{"type": "integer", "minimum": 1},
	},
}

var fileSchema = map[string]any{
	"type":     "object",
	"required": []any{"file_path", "total_lines", "content_hash", "ranges"},
	"properties": map[string]any{
		"file_path":    map[string]any{"type": "string", "minLength": 1},
		"total_lines":  map[string]any{"type": "integer", "minimum": 0},
		"content_hash": map[string]any{"type": "string", "pattern": "^[0-9a-f]{64}$"},
		"ranges": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type":     "object",
				"required": []any{"start_line", "end_line", "kind", "hash"},
				"properties": map[string]any{
					"start_line": map[string]any{"type": "integer", "minimum": 1},
					"end_line":   map[string]any{"type": "integer", "minimum": 1},
					"kind": map[string]any{"enum": []any{
						"table", "view", "type", "function", "query", "generated_function", "generated_type",
					}},
					"detail": map[string]any{"type": "string"},
					"hash":   map[string]any{"type": "string", "pattern": "^[0-9a-f]{64}$"},
				},
			},
		},
	},
}
