// Package embed provides the embedding backends for the predicate index: a
// Gemini-backed embedder through the genai SDK and a deterministic local
// fallback that needs no network.
package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// defaultGenAIModel is the embedding model used when none is configured.
const defaultGenAIModel = "gemini-embedding-001"

// genAIDimensions is the dimensionality of defaultGenAIModel vectors.
const genAIDimensions = 768

// GenAIEmbedder generates embeddings through Google's Gemini API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates a Gemini-backed embedder.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	if model == "" {
		model = defaultGenAIModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

// Embed implements outbound.Embedder.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentRequest{
			TaskType: genai.TaskTypeSemanticSimilarity,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// Dimensions implements outbound.Embedder.
func (e *GenAIEmbedder) Dimensions() int {
	return genAIDimensions
}

// Compile-time interface verification.
var _ outbound.Embedder = (*GenAIEmbedder)(nil)
