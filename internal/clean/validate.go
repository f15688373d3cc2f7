package clean

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// generateResponseSchema pins the shape of an /api/generate completion.
// A response that passes still carries untrusted text, but a response that
// fails is a protocol error and worth an immediate retry.
var generateResponseSchema = map[string]any{
	"type":     "object",
	"required": []any{"response", "done"},
	"properties": map[string]any{
		"model":    map[string]any{"type": "string"},
		"response": map[string]any{"type": "string"},
		"done":     map[string]any{"type": "boolean"},
	},
}

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
