package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// RefusalClassifier decides whether an assistant message is an explicit
// safety refusal, as opposed to a capability limit or an on-task reply.
type RefusalClassifier struct {
	oracle outbound.Oracle
	logger *slog.Logger
}

// NewRefusalClassifier creates a classifier backed by the given oracle.
func NewRefusalClassifier(o outbound.Oracle, logger *slog.Logger) *RefusalClassifier {
	return &RefusalClassifier{oracle: o, logger: logger}
}

// IsSafetyRefusal reports whether the message explicitly refuses on
// safety/policy grounds. Anything but a literal "Yes" reply counts as no.
func (c *RefusalClassifier) IsSafetyRefusal(ctx context.Context, message string) (bool, error) {
	reply, err := c.oracle.Complete(ctx, []outbound.Message{
		outbound.UserMessage(refusalPrompt(message)),
	})
	if err != nil {
		return false, fmt.Errorf("refusal classifier: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(reply), "yes"), nil
}
