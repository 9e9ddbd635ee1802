// Package index provides the predicate similarity index backends: a
// process-local cosine index and a Qdrant-backed one for shared deployments.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// MemoryIndex is an in-memory cosine-similarity index over embedded
// documents. Query order is deterministic: descending score, ties broken by
// id.
type MemoryIndex struct {
	embedder outbound.Embedder
	mu       sync.RWMutex
	vectors  map[string][]float32
}

// NewMemoryIndex creates an empty index over the embedder.
func NewMemoryIndex(embedder outbound.Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		vectors:  make(map[string][]float32),
	}
}

// Add implements outbound.VectorIndex.
func (m *MemoryIndex) Add(ctx context.Context, id, document string) error {
	vec, err := m.embedder.Embed(ctx, document)
	if err != nil {
		return fmt.Errorf("embed document %q: %w", id, err)
	}
	m.mu.Lock()
	m.vectors[id] = vec
	m.mu.Unlock()
	return nil
}

// Query implements outbound.VectorIndex.
func (m *MemoryIndex) Query(ctx context.Context, text string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	query, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	type scored struct {
		id    string
		score float64
	}

	m.mu.RLock()
	candidates := make([]scored, 0, len(m.vectors))
	for id, vec := range m.vectors {
		candidates = append(candidates, scored{id: id, score: cosine(query, vec)})
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].id
	}
	return out, nil
}

// Len reports how many documents are indexed.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Compile-time interface verification.
var _ outbound.VectorIndex = (*MemoryIndex)(nil)
