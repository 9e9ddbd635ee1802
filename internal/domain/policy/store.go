package policy

import (
	"context"
	"time"
)

// PredicateStore holds the guard's predicate state. Lookups are hot-path:
// every checkpoint reads the full valuation, so implementations keep
// everything in memory and never block.
// Interface owned by domain per hexagonal architecture.
type PredicateStore interface {
	// Upsert installs or replaces a predicate by name.
	Upsert(p Predicate)

	// Get returns the predicate with the given name.
	Get(name string) (Predicate, bool)

	// SetValue updates one predicate's truth value.
	// Returns ErrPredicateNotFound for unknown names.
	SetValue(name string, value bool) error

	// Apply updates truth values in bulk from a watcher verdict. Unknown
	// names are skipped, matching the rule that watchers may only flip
	// predicates that already exist.
	Apply(v Valuation)

	// Reset restores every predicate to its default truth value.
	Reset()

	// All returns a copy of every predicate.
	All() []Predicate

	// Subset returns copies of the named predicates, skipping unknowns.
	Subset(names []string) []Predicate

	// Valuation snapshots the current truth assignment of all predicates.
	Valuation() Valuation

	// Len reports how many predicates are installed.
	Len() int
}

// DecisionFilter specifies query parameters for decision log queries.
type DecisionFilter struct {
	// Kind filters by checkpoint kind (optional).
	Kind Kind
	// Sender filters by sending agent (optional).
	Sender string
	// Tool filters by tool name (optional).
	Tool string
	// Allowed filters by outcome (optional).
	Allowed *bool
	// Stage filters by deciding tier (optional).
	Stage Stage
	// Since keeps only decisions at or after this time (optional).
	Since time.Time
	// Limit is the maximum number of records to return (0 = no limit).
	Limit int
}

// DecisionLog records checkpoint outcomes.
// Interface owned by domain per hexagonal architecture.
type DecisionLog interface {
	// Record stores a decision. Must be cheap from caller perspective;
	// checkpoints sit on the request path.
	Record(ctx context.Context, d Decision) error
}

// DecisionQueryLog extends DecisionLog with read access for inspection.
type DecisionQueryLog interface {
	DecisionLog

	// Recent returns up to limit decisions, newest first.
	Recent(ctx context.Context, limit int) ([]Decision, error)

	// Query returns decisions matching the filter, newest first.
	Query(ctx context.Context, f DecisionFilter) ([]Decision, error)
}
