package schema

import (
	"encoding/json"
	"fmt"

	ijs "github.com/invopop/jsonschema"
)

// FromGoType builds a Schema from a Go struct's jsonschema tags, the
// same struct-tag vocabulary the teacher's functiontool package
// documents (json, jsonschema:"required", jsonschema:"description=...",
// jsonschema:"default=...", jsonschema:"enum=a|b", minimum/maximum).
// It reuses invopop/jsonschema for reflection/generation and converts
// the result into this package's validation-oriented Schema.
func FromGoType[T any]() (*Schema, error) {
	reflector := &ijs.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	generated := reflector.Reflect(new(T))

	raw, err := json.Marshal(generated)
	if err != nil {
		return nil, fmt.Errorf("marshal generated schema: %w", err)
	}

	var sc Schema
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("convert generated schema: %w", err)
	}
	return &sc, nil
}
