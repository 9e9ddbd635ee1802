package policy

import (
	"encoding/json"
	"fmt"
)

// PredicateDef is the wire form a predicate takes inside extracted policy
// JSON: a 4-tuple of name, description, keyword list and default value.
type PredicateDef struct {
	Name        string
	Description string
	Keywords    []string
	Default     bool
}

// Predicate converts the tuple into an installable predicate. The default
// doubles as the initial value.
func (d PredicateDef) Predicate() Predicate {
	return Predicate{
		Name:        d.Name,
		Description: d.Description,
		Keywords:    d.Keywords,
		Value:       d.Default,
		Default:     d.Default,
	}
}

// MarshalJSON renders the tuple form.
func (d PredicateDef) MarshalJSON() ([]byte, error) {
	kw := d.Keywords
	if kw == nil {
		kw = []string{}
	}
	return json.Marshal([]any{d.Name, d.Description, kw, d.Default})
}

// UnmarshalJSON parses the tuple form.
func (d *PredicateDef) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("predicate tuple: %w", err)
	}
	if len(tuple) != 4 {
		return fmt.Errorf("predicate tuple: want 4 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &d.Name); err != nil {
		return fmt.Errorf("predicate tuple name: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &d.Description); err != nil {
		return fmt.Errorf("predicate tuple description: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &d.Keywords); err != nil {
		return fmt.Errorf("predicate tuple keywords: %w", err)
	}
	if err := json.Unmarshal(tuple[3], &d.Default); err != nil {
		return fmt.Errorf("predicate tuple default: %w", err)
	}
	return nil
}

// Definition is one extracted rule: the predicate tuples it introduces plus
// the formula tying them together. A policy document distills into a list of
// these; the same list is what the extraction cache stores on disk.
type Definition struct {
	// Predicates are the tuples the rule introduces or reuses.
	Predicates []PredicateDef `json:"predicates"`
	// Logic is the propositional formula over predicate names.
	Logic string `json:"logic"`
	// Description names the rule and doubles as its identifier.
	Description string `json:"description"`
}

// Rule converts the definition into its rule form.
func (d Definition) Rule() Rule {
	return Rule{Name: d.Description, Logic: d.Logic}
}

// ParseDefinitions decodes an extracted policy JSON document.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse policy definitions: %w", err)
	}
	return defs, nil
}
