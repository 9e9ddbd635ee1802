package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/oracle"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// PredicateWatcher asks an oracle which predicates flipped given the latest
// observation. It only reports changes; predicates it stays silent about
// keep their current value.
type PredicateWatcher struct {
	oracle outbound.Oracle
	logger *slog.Logger
}

// NewPredicateWatcher creates a watcher backed by the given oracle.
func NewPredicateWatcher(o outbound.Oracle, logger *slog.Logger) *PredicateWatcher {
	return &PredicateWatcher{oracle: o, logger: logger}
}

// Observe sends the observation and the candidate predicates to the oracle
// and returns the truth assignments that should change. Names outside the
// candidate set are dropped; callers apply the rest to the store.
func (w *PredicateWatcher) Observe(ctx context.Context, observation string, subset []policy.Predicate) (policy.Valuation, error) {
	if len(subset) == 0 {
		return policy.Valuation{}, nil
	}

	messages := []outbound.Message{
		outbound.SystemMessage(predicateWatcherSystem),
		outbound.UserMessage(predicateWatcherUser(observation, renderPredicates(subset))),
	}

	var raw map[string]any
	if err := oracle.CompleteJSON(ctx, w.oracle, messages, &raw); err != nil {
		return nil, fmt.Errorf("predicate watcher: %w", err)
	}

	// Accept either a bare {name: bool} object or one wrapped in "changed".
	if inner, ok := raw["changed"].(map[string]any); ok && len(raw) == 1 {
		raw = inner
	}

	known := make(map[string]bool, len(subset))
	for _, p := range subset {
		known[p.Name] = true
	}

	changed := make(policy.Valuation, len(raw))
	for name, value := range raw {
		b, ok := value.(bool)
		if !ok {
			w.logger.Warn("watcher returned non-boolean predicate value",
				"predicate", name, "value", value)
			continue
		}
		if !known[name] {
			w.logger.Warn("watcher flipped a predicate outside the candidate set",
				"predicate", name)
			continue
		}
		changed[name] = b
	}
	return changed, nil
}

// renderPredicates lists the candidates one per line, with description,
// keywords, and current value, the way the watcher prompt expects them.
func renderPredicates(subset []policy.Predicate) string {
	var b strings.Builder
	for i, p := range subset {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Document())
		fmt.Fprintf(&b, " [current: %t]", p.Value)
	}
	return b.String()
}
