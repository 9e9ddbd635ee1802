// Package logic parses propositional policy expressions over predicate
// names. The grammar supports NOT, AND, OR, IMPLIES and parentheses, with
// precedence NOT > AND > OR > IMPLIES and a right-associative IMPLIES.
package logic

import (
	"fmt"
	"strings"
)

// Node is a parsed expression tree node.
type Node interface {
	// CEL renders the node as a CEL boolean expression over the same
	// identifiers. IMPLIES is lowered to material implication.
	CEL() string
	// String renders the node in the source grammar, fully parenthesized.
	String() string
}

// Ident is a predicate name reference.
type Ident struct {
	Name string
}

func (n Ident) CEL() string    { return n.Name }
func (n Ident) String() string { return n.Name }

// Not negates its operand.
type Not struct {
	Expr Node
}

func (n Not) CEL() string    { return fmt.Sprintf("!(%s)", n.Expr.CEL()) }
func (n Not) String() string { return fmt.Sprintf("(NOT %s)", n.Expr) }

// And is logical conjunction.
type And struct {
	Left, Right Node
}

func (n And) CEL() string    { return fmt.Sprintf("(%s) && (%s)", n.Left.CEL(), n.Right.CEL()) }
func (n And) String() string { return fmt.Sprintf("(%s AND %s)", n.Left, n.Right) }

// Or is logical disjunction.
type Or struct {
	Left, Right Node
}

func (n Or) CEL() string    { return fmt.Sprintf("(%s) || (%s)", n.Left.CEL(), n.Right.CEL()) }
func (n Or) String() string { return fmt.Sprintf("(%s OR %s)", n.Left, n.Right) }

// Implies is material implication: A IMPLIES B is (NOT A) OR B.
type Implies struct {
	Left, Right Node
}

func (n Implies) CEL() string {
	return fmt.Sprintf("(!(%s)) || (%s)", n.Left.CEL(), n.Right.CEL())
}

func (n Implies) String() string { return fmt.Sprintf("(%s IMPLIES %s)", n.Left, n.Right) }

// Identifiers returns the predicate names referenced by the expression,
// de-duplicated, in first-appearance order.
func Identifiers(n Node) []string {
	var names []string
	seen := make(map[string]struct{})
	collectIdentifiers(n, seen, &names)
	return names
}

func collectIdentifiers(n Node, seen map[string]struct{}, names *[]string) {
	switch v := n.(type) {
	case Ident:
		if _, ok := seen[v.Name]; !ok {
			seen[v.Name] = struct{}{}
			*names = append(*names, v.Name)
		}
	case Not:
		collectIdentifiers(v.Expr, seen, names)
	case And:
		collectIdentifiers(v.Left, seen, names)
		collectIdentifiers(v.Right, seen, names)
	case Or:
		collectIdentifiers(v.Left, seen, names)
		collectIdentifiers(v.Right, seen, names)
	case Implies:
		collectIdentifiers(v.Left, seen, names)
		collectIdentifiers(v.Right, seen, names)
	}
}

// Evaluate computes the expression's truth value under the given valuation.
// Names absent from the valuation evaluate to false. The walk is pure and
// consults no external state.
func Evaluate(n Node, valuation map[string]bool) bool {
	switch v := n.(type) {
	case Ident:
		return valuation[v.Name]
	case Not:
		return !Evaluate(v.Expr, valuation)
	case And:
		return Evaluate(v.Left, valuation) && Evaluate(v.Right, valuation)
	case Or:
		return Evaluate(v.Left, valuation) || Evaluate(v.Right, valuation)
	case Implies:
		return !Evaluate(v.Left, valuation) || Evaluate(v.Right, valuation)
	}
	return false
}

// operators reserved by the grammar. Matching is case-sensitive: lowercase
// forms are plain identifiers.
var operators = map[string]bool{
	"NOT": true, "AND": true, "OR": true, "IMPLIES": true,
}

// IsOperator reports whether the word is a reserved operator token.
func IsOperator(word string) bool { return operators[strings.TrimSpace(word)] }
