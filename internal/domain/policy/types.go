// Package policy contains domain types for predicate-based policy
// enforcement: predicates, rules over them, and the verdicts and decision
// records the guard produces.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind distinguishes the two rule sets a guard enforces.
type Kind string

const (
	// KindAction governs tool invocations.
	KindAction Kind = "action"
	// KindMessage governs inter-agent messages.
	KindMessage Kind = "message"
)

// Predicate is a named boolean fact about the conversation. Watchers update
// its value; rule logic references it by name.
type Predicate struct {
	// Name identifies the predicate inside rule logic (snake_case).
	Name string
	// Description tells the watcher what the predicate asserts.
	Description string
	// Keywords are surface forms that hint the predicate may be in play.
	Keywords []string
	// Value is the current truth assignment.
	Value bool
	// Default is the truth value the predicate is installed with and
	// returns to on reset.
	Default bool
}

// Document renders the predicate as a single searchable text for vector
// indexing. The rendering covers name, description and keywords so that a
// query can match any of them.
func (p Predicate) Document() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(": ")
	b.WriteString(p.Description)
	if len(p.Keywords) > 0 {
		b.WriteString(" (keywords: ")
		b.WriteString(strings.Join(p.Keywords, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Rule pairs a human-readable name with a propositional formula over
// predicate names. The formula is a safety assertion: it must evaluate true
// under the current valuation, otherwise the rule is violated.
type Rule struct {
	// Name is the rule's natural-language description from the source
	// policy document. It doubles as the rule's identifier.
	Name string
	// Logic is the formula, e.g. "asks_password IMPLIES user_consented".
	Logic string
}

// Set is an ordered rule collection. Rule names are unique within a set;
// Upsert replaces in place so load order is stable.
type Set []Rule

// Get returns the rule with the given name.
func (s Set) Get(name string) (Rule, bool) {
	for _, r := range s {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Upsert replaces the rule with the same name in place, or appends.
func (s *Set) Upsert(r Rule) {
	for i := range *s {
		if (*s)[i].Name == r.Name {
			(*s)[i] = r
			return
		}
	}
	*s = append(*s, r)
}

// Names returns the rule names in set order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = r.Name
	}
	return names
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Valuation maps predicate names to truth values. Rule evaluation treats
// names absent from the valuation as false.
type Valuation map[string]bool

// Clone returns an independent copy of the valuation.
func (v Valuation) Clone() Valuation {
	out := make(Valuation, len(v))
	for k, b := range v {
		out[k] = b
	}
	return out
}

// SortedNames returns the valuation's predicate names in lexical order.
// Cache fingerprints depend on this ordering being deterministic.
func (v Valuation) SortedNames() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Verdict is the outcome of checking a valuation against a rule set.
type Verdict struct {
	// Allowed is the conjunction of every rule in the set.
	Allowed bool
	// Violated lists the names of rules that evaluated to false, in set
	// order. Empty when Allowed.
	Violated []string
}

// ViolationSummary renders the violated rules with their logic for judge
// prompts, one rule per line.
func (v Verdict) ViolationSummary(rules Set) string {
	var b strings.Builder
	for i, name := range v.Violated {
		if i > 0 {
			b.WriteString("\n")
		}
		if r, ok := rules.Get(name); ok {
			fmt.Fprintf(&b, "- %s (logic: %s)", r.Name, r.Logic)
		} else {
			fmt.Fprintf(&b, "- %s", name)
		}
	}
	return b.String()
}

// Stage identifies which checkpoint tier produced a decision.
type Stage string

const (
	// StageDisabled means the guard was off and the request passed through.
	StageDisabled Stage = "disabled"
	// StageShortcut means a fast path decided without evaluating rules
	// (duplicate message, missing participants, sub-threshold threat).
	StageShortcut Stage = "shortcut"
	// StageCache means a cached verifier verdict was reused.
	StageCache Stage = "cache"
	// StageVerifier means the symbolic check decided on its own.
	StageVerifier Stage = "verifier"
	// StageJudge means the first-tier judge decided.
	StageJudge Stage = "judge"
	// StageChiefJudge means the escalation judge decided.
	StageChiefJudge Stage = "chief_judge"
)

// Decision is the audit record of one guard checkpoint.
type Decision struct {
	// ID uniquely identifies the decision.
	ID string
	// Timestamp is when the checkpoint completed (UTC).
	Timestamp time.Time
	// Kind says whether a message or an action was checked.
	Kind Kind
	// Sender is the originating agent, when known.
	Sender string
	// Recipient is the receiving agent, when known.
	Recipient string
	// Tool is the invoked tool name for action checkpoints.
	Tool string
	// Allowed is the final outcome.
	Allowed bool
	// Reason is the explanation attached to a denial. Empty when allowed.
	Reason string
	// Stage is the tier that produced the outcome.
	Stage Stage
	// Violated lists rule names the verifier flagged, if any.
	Violated []string
	// Elapsed is how long the checkpoint took end to end.
	Elapsed time.Duration
}
