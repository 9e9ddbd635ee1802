package agentguard

import (
	"context"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/trace"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// teeLog records decisions in the in-memory store and the file trace.
// Reads come from memory; the trace is the durable copy.
type teeLog struct {
	mem    policy.DecisionQueryLog
	writer *trace.Writer
}

func (t teeLog) Record(ctx context.Context, d policy.Decision) error {
	if err := t.writer.Record(ctx, d); err != nil {
		return err
	}
	return t.mem.Record(ctx, d)
}

func (t teeLog) Recent(ctx context.Context, limit int) ([]policy.Decision, error) {
	return t.mem.Recent(ctx, limit)
}

func (t teeLog) Query(ctx context.Context, f policy.DecisionFilter) ([]policy.Decision, error) {
	return t.mem.Query(ctx, f)
}
