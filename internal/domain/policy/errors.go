package policy

import (
	"errors"
	"fmt"
)

// ErrInvalidRule indicates a rule's logic failed to parse or compile.
var ErrInvalidRule = errors.New("invalid rule logic")

// ErrRuleNotFound indicates a named rule is absent from the set.
var ErrRuleNotFound = errors.New("rule not found")

// ErrPredicateNotFound indicates a named predicate is absent from the store.
var ErrPredicateNotFound = errors.New("predicate not found")

// RuleError wraps a parse or compile failure with the offending rule.
type RuleError struct {
	Rule  string
	Logic string
	Err   error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: bad logic %q: %v", e.Rule, e.Logic, e.Err)
}

// Unwrap returns ErrInvalidRule so errors.Is(err, ErrInvalidRule) works.
func (e *RuleError) Unwrap() error {
	return ErrInvalidRule
}
