package policy

import (
	"github.com/Aegis-Guard/Aegisguard/internal/domain/logic"
)

// Evaluate checks every rule in the set against the valuation and returns
// the verdict. Each rule is a safety assertion that must hold: a rule whose
// formula evaluates to false is violated, and the overall decision is the
// conjunction of all rules. Names absent from the valuation count as false.
// An empty set allows.
//
// This is the reference evaluator. The verifier service compiles rules to
// CEL programs for the hot path; validation tooling and tests use this one.
func Evaluate(rules Set, v Valuation) (Verdict, error) {
	verdict := Verdict{Allowed: true}
	for _, r := range rules {
		node, err := logic.Parse(r.Logic)
		if err != nil {
			return Verdict{}, &RuleError{Rule: r.Name, Logic: r.Logic, Err: err}
		}
		if !logic.Evaluate(node, v) {
			verdict.Violated = append(verdict.Violated, r.Name)
		}
	}
	verdict.Allowed = len(verdict.Violated) == 0
	return verdict, nil
}

// Validate parses every rule in the set and reports the first failure as a
// RuleError. A nil return means the whole set is loadable.
func Validate(rules Set) error {
	for _, r := range rules {
		if _, err := logic.Parse(r.Logic); err != nil {
			return &RuleError{Rule: r.Name, Logic: r.Logic, Err: err}
		}
	}
	return nil
}

// ReferencedPredicates returns every predicate name mentioned across the
// rule set, de-duplicated, in first-appearance order. Rule installation
// uses this to discover names that appear in logic but were never defined
// as tuples.
func ReferencedPredicates(rules Set) ([]string, error) {
	var names []string
	seen := make(map[string]struct{})
	for _, r := range rules {
		node, err := logic.Parse(r.Logic)
		if err != nil {
			return nil, &RuleError{Rule: r.Name, Logic: r.Logic, Err: err}
		}
		for _, name := range logic.Identifiers(node) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names, nil
}
