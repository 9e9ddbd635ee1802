// Package cel evaluates propositional policy rules as compiled CEL
// programs. Rule logic is parsed by the domain parser, transpiled to a CEL
// boolean expression, and compiled against an environment that declares one
// bool variable per known predicate.
package cel

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/logic"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// maxExpressionLength caps rule logic size before parsing.
const maxExpressionLength = 4096

// maxCostBudget is the CEL runtime cost limit. Propositional formulas stay
// far below it; the cap guards against pathological inputs.
const maxCostBudget = 100_000

// Evaluator compiles and evaluates rule logic. The CEL environment is
// rebuilt whenever new predicate names are declared; compiled programs
// remain valid across rebuilds.
type Evaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	declared map[string]struct{}
}

// NewEvaluator creates an evaluator with the given predicate names
// declared as bool variables.
func NewEvaluator(names []string) (*Evaluator, error) {
	e := &Evaluator{declared: make(map[string]struct{})}
	for _, name := range names {
		e.declared[name] = struct{}{}
	}
	if err := e.rebuildEnv(); err != nil {
		return nil, err
	}
	return e, nil
}

// Declare adds predicate names to the environment, rebuilding it if any
// name is new.
func (e *Evaluator) Declare(names ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := false
	for _, name := range names {
		if _, ok := e.declared[name]; !ok {
			e.declared[name] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return e.rebuildEnvLocked()
}

func (e *Evaluator) rebuildEnv() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildEnvLocked()
}

func (e *Evaluator) rebuildEnvLocked() error {
	opts := make([]cel.EnvOption, 0, len(e.declared))
	for name := range e.declared {
		opts = append(opts, cel.Variable(name, cel.BoolType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("build cel environment: %w", err)
	}
	e.env = env
	return nil
}

// Compile parses the rule's logic, declares any predicate names it
// references, and compiles the transpiled CEL source. Parse and compile
// failures come back as a RuleError wrapping ErrInvalidRule.
func (e *Evaluator) Compile(r policy.Rule) (cel.Program, error) {
	if len(r.Logic) > maxExpressionLength {
		return nil, &policy.RuleError{Rule: r.Name, Logic: r.Logic,
			Err: fmt.Errorf("logic too long: %d characters (max %d)", len(r.Logic), maxExpressionLength)}
	}
	node, err := logic.Parse(r.Logic)
	if err != nil {
		return nil, &policy.RuleError{Rule: r.Name, Logic: r.Logic, Err: err}
	}
	if err := e.Declare(logic.Identifiers(node)...); err != nil {
		return nil, err
	}

	e.mu.RLock()
	env := e.env
	e.mu.RUnlock()

	ast, issues := env.Compile(node.CEL())
	if issues != nil && issues.Err() != nil {
		return nil, &policy.RuleError{Rule: r.Name, Logic: r.Logic, Err: issues.Err()}
	}
	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, &policy.RuleError{Rule: r.Name, Logic: r.Logic, Err: err}
	}
	return prg, nil
}

// Evaluate runs a compiled program under the valuation. Declared names
// absent from the valuation evaluate as false.
func (e *Evaluator) Evaluate(prg cel.Program, valuation policy.Valuation) (bool, error) {
	e.mu.RLock()
	activation := make(map[string]any, len(e.declared))
	for name := range e.declared {
		activation[name] = valuation[name]
	}
	e.mu.RUnlock()

	result, _, err := prg.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return b, nil
}
