package provider

import (
	"encoding/json"
	"fmt"
)

// capabilityName is the only analysis capability this provider advertises.
const capabilityName = "referenced"

// Capability is one named analysis feature in the capabilities response.
type Capability struct {
	Name            string          `json:"name"`
	TemplateContext json.RawMessage `json:"templateContext,omitempty"`
}

// conditionSchema describes the referenced condition payload. Serialization
// failure here is a fatal configuration error, not an expected outcome.
func conditionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"referenced": map[string]any{
				"type":     "object",
				"required": []string{"pattern"},
				"properties": map[string]any{
					"pattern": map[string]any{"type": "string"},
					"location": map[string]any{
						"type": "string",
						"enum": []string{"ALL", "METHOD", "FIELD", "CLASS"},
					},
					"file_paths": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// Capabilities returns the fixed descriptor set.
func (p *Provider) Capabilities() ([]Capability, error) {
	schema, err := json.Marshal(conditionSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal capability schema: %w", err)
	}
	p.logger.Debug("returning referenced capability", "schema", string(schema))
	return []Capability{{Name: capabilityName}}, nil
}
