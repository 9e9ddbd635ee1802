package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/oracle"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/conversation"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/tool"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// Ruling is a judge's final word on one contested checkpoint.
type Ruling struct {
	// Allowed is true when no policy is actually violated.
	Allowed bool
	// Reason is the judge's justification.
	Reason string
}

// Judge reviews checkpoints the verifier flagged. The same type serves both
// tiers; the chief judge is just a Judge on a stronger model.
type Judge struct {
	oracle outbound.Oracle
	logger *slog.Logger
}

// NewJudge creates a judge backed by the given oracle.
func NewJudge(o outbound.Oracle, logger *slog.Logger) *Judge {
	return &Judge{oracle: o, logger: logger}
}

// judgeReply is the oracle's reply shape for both judging modes.
type judgeReply struct {
	Decision bool   `json:"decision"`
	Reason   string `json:"reason"`
}

// JudgeAction reviews a contested tool call. The violations text lists the
// flagged rules with their logic; the descriptor carries the tool's
// description and serialized arguments.
func (j *Judge) JudgeAction(ctx context.Context, observation string, level conversation.ThreatLevel, violations string, desc tool.Descriptor) (Ruling, error) {
	messages := []outbound.Message{
		outbound.SystemMessage(judgeActionSystem),
		outbound.UserMessage(judgeActionUser(
			observation, level.String(), violations,
			desc.Name, desc.Description, desc.Arguments,
		)),
	}
	return j.rule(ctx, messages)
}

// JudgeMessage reviews a contested inter-agent message.
func (j *Judge) JudgeMessage(ctx context.Context, observation, violations string) (Ruling, error) {
	messages := []outbound.Message{
		outbound.SystemMessage(judgeMessageSystem),
		outbound.UserMessage(judgeMessageUser(observation, violations)),
	}
	return j.rule(ctx, messages)
}

func (j *Judge) rule(ctx context.Context, messages []outbound.Message) (Ruling, error) {
	var out judgeReply
	if err := oracle.CompleteJSON(ctx, j.oracle, messages, &out); err != nil {
		return Ruling{}, fmt.Errorf("judge: %w", err)
	}
	return Ruling{Allowed: out.Decision, Reason: out.Reason}, nil
}
