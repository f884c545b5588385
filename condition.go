package provider

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/csgraph"
)

// Location restricts where in the source a reference must occur. Conditions
// spell it in uppercase; absence means ALL.
type Location int

const (
	LocationAll Location = iota
	LocationMethod
	LocationField
	LocationClass
)

func (l *Location) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "", "ALL":
		*l = LocationAll
	case "METHOD":
		*l = LocationMethod
	case "FIELD":
		*l = LocationField
	case "CLASS":
		*l = LocationClass
	default:
		return fmt.Errorf("unknown location %q", s)
	}
	return nil
}

func (l Location) scope() csgraph.Scope {
	switch l {
	case LocationMethod:
		return csgraph.ScopeMethod
	case LocationField:
		return csgraph.ScopeField
	case LocationClass:
		return csgraph.ScopeClass
	default:
		return csgraph.ScopeAll
	}
}

type referenceCondition struct {
	Pattern  string   `yaml:"pattern"`
	Location Location `yaml:"location"`
	// FilePaths is accepted for schema compatibility; path filtering is not
	// applied to query results.
	FilePaths []string `yaml:"file_paths"`
}

// csharpCondition is the condition payload shape for the referenced
// capability.
type csharpCondition struct {
	Referenced referenceCondition `yaml:"referenced"`
}

func parseCondition(conditionInfo []byte) (csharpCondition, error) {
	var cond csharpCondition
	if err := yaml.Unmarshal(conditionInfo, &cond); err != nil {
		return csharpCondition{}, fmt.Errorf("decode condition: %w", err)
	}
	return cond, nil
}
