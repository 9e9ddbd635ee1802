package outbound

import "context"

// Embedder maps text to a fixed-dimension vector. It backs the predicate
// similarity index.
type Embedder interface {
	// Embed returns the embedding for the text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the embedding dimensionality.
	Dimensions() int
}

// VectorIndex is the predicate similarity index. Documents are keyed by
// predicate name; Query returns ids by descending similarity and must be
// stable for identical inputs.
type VectorIndex interface {
	// Add inserts or replaces the document under the id.
	Add(ctx context.Context, id, document string) error
	// Query returns up to n ids nearest to the query text.
	Query(ctx context.Context, text string, n int) ([]string, error)
}
