package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/oracle"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/conversation"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// ThreatWatcher grades a sender's recent behavior on the 0..4 threat scale.
type ThreatWatcher struct {
	oracle outbound.Oracle
	logger *slog.Logger
}

// NewThreatWatcher creates a watcher backed by the given oracle.
func NewThreatWatcher(o outbound.Oracle, logger *slog.Logger) *ThreatWatcher {
	return &ThreatWatcher{oracle: o, logger: logger}
}

// threatAssessment is the oracle's reply shape.
type threatAssessment struct {
	ThreatLevel int    `json:"threat_level"`
	Reason      string `json:"reason"`
}

// Assess sends the sender's recent messages (newest last) and current level
// to the oracle and returns the updated level, clamped to the valid range.
func (w *ThreatWatcher) Assess(ctx context.Context, history []string, current conversation.ThreatLevel) (conversation.ThreatLevel, error) {
	messages := []outbound.Message{
		outbound.SystemMessage(threatWatcherSystem),
		outbound.UserMessage(threatWatcherUser(renderObservations(history), int(current))),
	}

	var out threatAssessment
	if err := oracle.CompleteJSON(ctx, w.oracle, messages, &out); err != nil {
		return current, fmt.Errorf("threat watcher: %w", err)
	}

	level := conversation.ClampThreatLevel(out.ThreatLevel)
	if out.ThreatLevel != int(level) {
		w.logger.Warn("threat watcher returned out-of-range level",
			"returned", out.ThreatLevel, "clamped", level)
	}
	return level, nil
}

// renderObservations lists the history one message per line, oldest first,
// so the prompt's "most recent one is new" framing holds.
func renderObservations(history []string) string {
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, msg)
	}
	return b.String()
}
