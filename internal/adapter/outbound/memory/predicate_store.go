// Package memory provides in-memory implementations of the guard's storage
// ports: the predicate store and the decision log. Both are safe for
// concurrent use and keep everything resident, which is what the checkpoint
// hot path requires.
package memory

import (
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// PredicateStore is a thread-safe in-memory policy.PredicateStore. Insertion
// order is preserved so All and Valuation render predicates the way the
// policy document introduced them.
type PredicateStore struct {
	mu     sync.RWMutex
	byName map[string]int
	preds  []policy.Predicate
}

// NewPredicateStore creates an empty store.
func NewPredicateStore() *PredicateStore {
	return &PredicateStore{byName: make(map[string]int)}
}

// Upsert installs or replaces a predicate by name. A replacement keeps the
// original insertion position.
func (s *PredicateStore) Upsert(p policy.Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Keywords = cloneKeywords(p.Keywords)
	if i, ok := s.byName[p.Name]; ok {
		s.preds[i] = p
		return
	}
	s.byName[p.Name] = len(s.preds)
	s.preds = append(s.preds, p)
}

// Get returns a copy of the predicate with the given name.
func (s *PredicateStore) Get(name string) (policy.Predicate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byName[name]
	if !ok {
		return policy.Predicate{}, false
	}
	p := s.preds[i]
	p.Keywords = cloneKeywords(p.Keywords)
	return p, true
}

// SetValue updates one predicate's truth value.
func (s *PredicateStore) SetValue(name string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byName[name]
	if !ok {
		return policy.ErrPredicateNotFound
	}
	s.preds[i].Value = value
	return nil
}

// Apply updates truth values in bulk. Names not present in the store are
// skipped: watchers may only flip predicates that already exist.
func (s *PredicateStore) Apply(v policy.Valuation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range v {
		if i, ok := s.byName[name]; ok {
			s.preds[i].Value = value
		}
	}
}

// Reset restores every predicate to its default truth value.
func (s *PredicateStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.preds {
		s.preds[i].Value = s.preds[i].Default
	}
}

// All returns copies of every predicate in insertion order.
func (s *PredicateStore) All() []policy.Predicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]policy.Predicate, len(s.preds))
	for i, p := range s.preds {
		p.Keywords = cloneKeywords(p.Keywords)
		out[i] = p
	}
	return out
}

// Subset returns copies of the named predicates in the order given,
// skipping unknown names.
func (s *PredicateStore) Subset(names []string) []policy.Predicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]policy.Predicate, 0, len(names))
	for _, name := range names {
		i, ok := s.byName[name]
		if !ok {
			continue
		}
		p := s.preds[i]
		p.Keywords = cloneKeywords(p.Keywords)
		out = append(out, p)
	}
	return out
}

// Valuation snapshots the current truth assignment of all predicates.
func (s *PredicateStore) Valuation() policy.Valuation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := make(policy.Valuation, len(s.preds))
	for _, p := range s.preds {
		v[p.Name] = p.Value
	}
	return v
}

// Len reports how many predicates are installed.
func (s *PredicateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.preds)
}

func cloneKeywords(ks []string) []string {
	if ks == nil {
		return nil
	}
	out := make([]string, len(ks))
	copy(out, ks)
	return out
}

// Compile-time interface verification.
var _ policy.PredicateStore = (*PredicateStore)(nil)
