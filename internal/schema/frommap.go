package schema

import (
	"encoding/json"
	"fmt"
)

// FromMap converts a ToolDefinition's InputSchema/OutputSchema
// (map[string]any, the wire/storage shape the Registry keeps) into a
// *Schema the validator can check values against. Same marshal-then-
// unmarshal approach as FromGoType, so both construction paths produce
// an identical Schema shape regardless of source.
func FromMap(m map[string]any) (*Schema, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	var sc Schema
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("convert input schema: %w", err)
	}
	return &sc, nil
}
