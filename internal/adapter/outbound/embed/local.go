package embed

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// LocalDimensions is the vector size of the local embedder.
const LocalDimensions = 256

// LocalEmbedder is a deterministic, network-free embedder: each token is
// hashed into a handful of dimensions and the sum is unit-normalized.
// Lexical overlap between texts translates into cosine similarity, which is
// enough for keyword-flavoured predicate retrieval and for tests.
type LocalEmbedder struct{}

// NewLocalEmbedder creates a local embedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

// hashesPerToken spreads each token over several dimensions to soften
// collisions.
const hashesPerToken = 3

// Embed implements outbound.Embedder. It never fails.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, LocalDimensions)
	for _, token := range tokenize(text) {
		for seed := 0; seed < hashesPerToken; seed++ {
			h := xxhash.Sum64String(token) + uint64(seed)*0x9e3779b97f4a7c15
			dim := h % LocalDimensions
			sign := float32(1)
			if h&(1<<63) != 0 {
				sign = -1
			}
			vec[dim] += sign
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Dimensions implements outbound.Embedder.
func (e *LocalEmbedder) Dimensions() int {
	return LocalDimensions
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Compile-time interface verification.
var _ outbound.Embedder = (*LocalEmbedder)(nil)
