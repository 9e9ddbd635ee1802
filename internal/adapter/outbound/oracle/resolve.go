package oracle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// Credentials carries the provider API keys resolution can draw from.
type Credentials struct {
	OpenAIKey     string
	AnthropicKey  string
	GeminiKey     string
	OpenRouterKey string
}

// Resolve picks a provider for the model name: "claude" models go to
// Anthropic, "gpt" models to OpenAI, "gemini" models to Google, everything
// else to OpenRouter, which fronts the long tail of hosted models. onRetry,
// when non-nil, is invoked once per transport retry on the HTTP clients; the
// Gemini SDK manages its own transport.
func Resolve(ctx context.Context, model string, creds Credentials, timeout time.Duration, onRetry func(), logger *slog.Logger) (outbound.Oracle, error) {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude"):
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  creds.AnthropicKey,
			Model:   model,
			Timeout: timeout,
			OnRetry: onRetry,
		}, logger), nil
	case strings.Contains(lower, "gpt"),
		strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  creds.OpenAIKey,
			Model:   model,
			Timeout: timeout,
			OnRetry: onRetry,
		}, logger), nil
	case strings.Contains(lower, "gemini"):
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey: creds.GeminiKey,
			Model:  model,
		}, logger)
	default:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  creds.OpenRouterKey,
			BaseURL: OpenRouterBaseURL,
			Model:   model,
			Timeout: timeout,
			OnRetry: onRetry,
		}, logger), nil
	}
}
