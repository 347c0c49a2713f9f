package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a minimal inline JSON schema from an argument struct using
// reflection. Field descriptions come from `jsonschema:"description=..."`
// tags; optional fields are marked with `json:",omitempty"`.
func SchemaFor(v any) map[string]any {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	delete(m, "$schema")
	delete(m, "$id")
	delete(m, "additionalProperties")
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	return m
}

// decodeArgs parses a serialized JSON argument payload into a generic map.
// An empty payload decodes to an empty map.
func decodeArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}
