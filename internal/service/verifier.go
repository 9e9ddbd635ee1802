package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/cel-go/cel"

	celeval "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cel"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// compiledRule pairs a rule with its pre-compiled CEL program.
type compiledRule struct {
	rule policy.Rule
	prg  cel.Program
}

// Verifier is the symbolic checkpoint: it holds the compiled rule sets per
// policy kind and evaluates the current valuation against them. Every rule
// is a safety assertion, so a verdict allows only when all rules hold.
// Verdicts are cached by a fingerprint of (kind, valuation, rules).
type Verifier struct {
	mu        sync.RWMutex
	evaluator *celeval.Evaluator
	sets      map[policy.Kind][]compiledRule
	stash     map[policy.Kind][]compiledRule
	cache     *VerdictCache
	logger    *slog.Logger
}

// NewVerifier creates a verifier with an empty rule set for each kind.
func NewVerifier(evaluator *celeval.Evaluator, cacheSize int, logger *slog.Logger) *Verifier {
	return &Verifier{
		evaluator: evaluator,
		sets:      make(map[policy.Kind][]compiledRule),
		stash:     make(map[policy.Kind][]compiledRule),
		cache:     NewVerdictCache(cacheSize),
		logger:    logger,
	}
}

// Install compiles the rules and adds them to the kind's set, replacing
// rules with the same name in place. Rules that fail to compile are skipped
// with a warning; the rest still install. Returns the first compile error
// so callers can surface it, or nil when everything compiled.
func (v *Verifier) Install(kind policy.Kind, rules policy.Set) error {
	var firstErr error
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		prg, err := v.evaluator.Compile(r)
		if err != nil {
			v.logger.Warn("skipping rule that failed to compile",
				"kind", kind, "rule", r.Name, "logic", r.Logic, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		compiled = append(compiled, compiledRule{rule: r, prg: prg})
	}

	v.mu.Lock()
	set := v.sets[kind]
	for _, cr := range compiled {
		set = upsertCompiled(set, cr)
	}
	v.sets[kind] = set
	v.mu.Unlock()

	v.cache.Clear()
	return firstErr
}

// Rules returns the installed rule set for the kind, in install order.
func (v *Verifier) Rules(kind policy.Kind) policy.Set {
	v.mu.RLock()
	defer v.mu.RUnlock()
	set := v.sets[kind]
	out := make(policy.Set, len(set))
	for i, cr := range set {
		out[i] = cr.rule
	}
	return out
}

// HasRules reports whether any rules are installed for the kind.
func (v *Verifier) HasRules(kind policy.Kind) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.sets[kind]) > 0
}

// Deactivate stashes the kind's active rules and clears the set. Checks on
// an empty set allow everything. A second Deactivate before Activate is a
// no-op so the stash is never overwritten with an empty set.
func (v *Verifier) Deactivate(kind policy.Kind) {
	v.mu.Lock()
	if len(v.sets[kind]) > 0 {
		v.stash[kind] = v.sets[kind]
		v.sets[kind] = nil
	}
	v.mu.Unlock()
	v.cache.Clear()
}

// Activate restores the named rules from the kind's stash, in stash order.
// Names not present in the stash produce ErrRuleNotFound; the named rules
// that do exist are still restored.
func (v *Verifier) Activate(kind policy.Kind, names []string) error {
	v.mu.Lock()
	stash := v.stash[kind]
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	set := v.sets[kind]
	found := make(map[string]bool, len(names))
	for _, cr := range stash {
		if wanted[cr.rule.Name] {
			set = upsertCompiled(set, cr)
			found[cr.rule.Name] = true
		}
	}
	v.sets[kind] = set
	v.mu.Unlock()

	v.cache.Clear()
	for _, n := range names {
		if !found[n] {
			return fmt.Errorf("activate rule %q: %w", n, policy.ErrRuleNotFound)
		}
	}
	return nil
}

// Check evaluates the valuation against the kind's rule set. The boolean
// result reports whether the verdict came from the cache. A rule whose
// evaluation errors is treated as not violated, with a warning; an empty
// rule set allows.
func (v *Verifier) Check(kind policy.Kind, valuation policy.Valuation) (policy.Verdict, bool) {
	v.mu.RLock()
	set := v.sets[kind]
	v.mu.RUnlock()

	key := Fingerprint(kind, valuation, rulesOf(set))
	if verdict, ok := v.cache.Get(key); ok {
		return verdict, true
	}

	verdict := policy.Verdict{Allowed: true}
	for _, cr := range set {
		ok, err := v.evaluator.Evaluate(cr.prg, valuation)
		if err != nil {
			v.logger.Warn("rule evaluation failed, treating as satisfied",
				"kind", kind, "rule", cr.rule.Name, "error", err)
			continue
		}
		if !ok {
			verdict.Allowed = false
			verdict.Violated = append(verdict.Violated, cr.rule.Name)
		}
	}

	v.cache.Put(key, verdict)
	return verdict, false
}

// ClearCache drops all cached verdicts.
func (v *Verifier) ClearCache() {
	v.cache.Clear()
}

// Fingerprint hashes the evaluation context: the policy kind, the valuation
// in sorted name order, and the rule set. Two checks with identical inputs
// share a fingerprint regardless of map iteration order.
func Fingerprint(kind policy.Kind, valuation policy.Valuation, rules policy.Set) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(string(kind))
	_, _ = h.Write([]byte{0})

	for _, name := range valuation.SortedNames() {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(strconv.FormatBool(valuation[name]))
		_, _ = h.Write([]byte{0})
	}

	sorted := rules.Clone()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, r := range sorted {
		_, _ = h.WriteString(r.Name)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(r.Logic)
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}

func upsertCompiled(set []compiledRule, cr compiledRule) []compiledRule {
	for i := range set {
		if set[i].rule.Name == cr.rule.Name {
			set[i] = cr
			return set
		}
	}
	return append(set, cr)
}

func rulesOf(set []compiledRule) policy.Set {
	out := make(policy.Set, len(set))
	for i, cr := range set {
		out[i] = cr.rule
	}
	return out
}
