package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

func TestDecisionStoreRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore(10)
	for i := 0; i < 3; i++ {
		if err := s.Record(ctx, policy.Decision{ID: fmt.Sprintf("d%d", i)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "d2" || got[2].ID != "d0" {
		t.Errorf("Recent = %+v, want newest first d2..d0", ids(got))
	}

	got, _ = s.Recent(ctx, 2)
	if len(got) != 2 || got[0].ID != "d2" {
		t.Errorf("Recent(2) = %v", ids(got))
	}
}

func TestDecisionStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore(3)
	for i := 0; i < 5; i++ {
		s.Record(ctx, policy.Decision{ID: fmt.Sprintf("d%d", i)})
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	got, _ := s.Recent(ctx, 0)
	if got[0].ID != "d4" || got[2].ID != "d2" {
		t.Errorf("Recent after wrap = %v, want [d4 d3 d2]", ids(got))
	}
}

func TestDecisionStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore(10)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Record(ctx, policy.Decision{ID: "a1", Kind: policy.KindAction, Tool: "run_code", Allowed: true, Stage: policy.StageVerifier, Timestamp: base})
	s.Record(ctx, policy.Decision{ID: "m1", Kind: policy.KindMessage, Sender: "coder", Allowed: false, Stage: policy.StageJudge, Timestamp: base.Add(time.Minute)})
	s.Record(ctx, policy.Decision{ID: "a2", Kind: policy.KindAction, Tool: "transfer", Allowed: false, Stage: policy.StageChiefJudge, Timestamp: base.Add(2 * time.Minute)})

	denied := false
	tests := []struct {
		name   string
		filter policy.DecisionFilter
		want   []string
	}{
		{"by kind", policy.DecisionFilter{Kind: policy.KindAction}, []string{"a2", "a1"}},
		{"by sender", policy.DecisionFilter{Sender: "coder"}, []string{"m1"}},
		{"by tool", policy.DecisionFilter{Tool: "transfer"}, []string{"a2"}},
		{"by outcome", policy.DecisionFilter{Allowed: &denied}, []string{"a2", "m1"}},
		{"by stage", policy.DecisionFilter{Stage: policy.StageJudge}, []string{"m1"}},
		{"since", policy.DecisionFilter{Since: base.Add(time.Minute)}, []string{"a2", "m1"}},
		{"limited", policy.DecisionFilter{Kind: policy.KindAction, Limit: 1}, []string{"a2"}},
		{"no match", policy.DecisionFilter{Sender: "ghost"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
				t.Errorf("Query = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func ids(ds []policy.Decision) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
