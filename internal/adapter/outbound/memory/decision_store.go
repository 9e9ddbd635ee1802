package memory

import (
	"context"
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// DefaultDecisionCapacity bounds the decision ring when no capacity is
// configured.
const DefaultDecisionCapacity = 1024

// DecisionStore is a bounded in-memory policy.DecisionQueryLog. Once the
// ring is full the oldest decisions are overwritten.
type DecisionStore struct {
	mu       sync.RWMutex
	ring     []policy.Decision
	capacity int
	next     int
	size     int
}

// NewDecisionStore creates a ring holding up to capacity decisions.
// Non-positive capacities fall back to DefaultDecisionCapacity.
func NewDecisionStore(capacity int) *DecisionStore {
	if capacity <= 0 {
		capacity = DefaultDecisionCapacity
	}
	return &DecisionStore{
		ring:     make([]policy.Decision, capacity),
		capacity: capacity,
	}
}

// Record stores a decision, evicting the oldest when full.
func (s *DecisionStore) Record(_ context.Context, d policy.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Violated = cloneViolated(d.Violated)
	s.ring[s.next] = d
	s.next = (s.next + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}
	return nil
}

// Recent returns up to limit decisions, newest first. A non-positive limit
// returns everything retained.
func (s *DecisionStore) Recent(_ context.Context, limit int) ([]policy.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]policy.Decision, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.at(i))
	}
	return out, nil
}

// Query returns decisions matching the filter, newest first.
func (s *DecisionStore) Query(_ context.Context, f policy.DecisionFilter) ([]policy.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]policy.Decision, 0)
	for i := 0; i < s.size; i++ {
		d := s.at(i)
		if !matches(d, f) {
			continue
		}
		out = append(out, d)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Len reports how many decisions are retained.
func (s *DecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// at returns a copy of the i-th newest decision. Callers hold the lock.
func (s *DecisionStore) at(i int) policy.Decision {
	idx := (s.next - 1 - i + s.capacity*2) % s.capacity
	d := s.ring[idx]
	d.Violated = cloneViolated(d.Violated)
	return d
}

func matches(d policy.Decision, f policy.DecisionFilter) bool {
	if f.Kind != "" && d.Kind != f.Kind {
		return false
	}
	if f.Sender != "" && d.Sender != f.Sender {
		return false
	}
	if f.Tool != "" && d.Tool != f.Tool {
		return false
	}
	if f.Allowed != nil && d.Allowed != *f.Allowed {
		return false
	}
	if f.Stage != "" && d.Stage != f.Stage {
		return false
	}
	if !f.Since.IsZero() && d.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

func cloneViolated(vs []string) []string {
	if vs == nil {
		return nil
	}
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// Compile-time interface verification.
var _ policy.DecisionQueryLog = (*DecisionStore)(nil)
