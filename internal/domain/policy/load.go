package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML parses the tuple form from a YAML sequence, mirroring the
// JSON cache format.
func (d *PredicateDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 4 {
		return fmt.Errorf("predicate tuple: want a 4-element sequence")
	}
	if err := value.Content[0].Decode(&d.Name); err != nil {
		return fmt.Errorf("predicate tuple name: %w", err)
	}
	if err := value.Content[1].Decode(&d.Description); err != nil {
		return fmt.Errorf("predicate tuple description: %w", err)
	}
	if err := value.Content[2].Decode(&d.Keywords); err != nil {
		return fmt.Errorf("predicate tuple keywords: %w", err)
	}
	if err := value.Content[3].Decode(&d.Default); err != nil {
		return fmt.Errorf("predicate tuple default: %w", err)
	}
	return nil
}

// ParseDefinitionsYAML decodes a YAML policy list, the YAML rendering of the
// extraction cache format.
func ParseDefinitionsYAML(data []byte) ([]Definition, error) {
	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse policy definitions: %w", err)
	}
	return defs, nil
}

// LoadDefinitionsFile reads a pre-extracted policy list from disk. The
// format is chosen by extension: .yaml/.yml parse as YAML, everything else
// as JSON.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy list: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseDefinitionsYAML(data)
	default:
		return ParseDefinitions(data)
	}
}
