package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// GeminiConfig configures a Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient serves completions through the Google genai SDK. The SDK owns
// transport concerns; only empty replies are mapped onto the oracle errors.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrOracleTransport)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model, logger: logger}, nil
}

// Complete implements outbound.Oracle. System-role messages become the
// request's system instruction.
func (c *GeminiClient) Complete(ctx context.Context, messages []outbound.Message) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		if m.Role == outbound.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}

	var temperature float32
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleTransport, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: no completion returned", ErrOracleTransport)
	}
	c.logger.Debug("oracle completion",
		"provider", "gemini", "model", c.model,
		"elapsed", time.Since(start), "response_len", len(text))
	return text, nil
}

// Compile-time interface verification.
var _ outbound.Oracle = (*GeminiClient)(nil)
