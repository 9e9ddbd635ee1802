package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// DefaultOpenAIBaseURL is the OpenAI API endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenRouterBaseURL is the OpenRouter endpoint, which speaks the same chat
// completions protocol.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIConfig configures an OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// OnRetry, when set, is invoked once per transport retry.
	OnRetry func()
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	onRetry    func()
	logger     *slog.Logger
}

// NewOpenAIClient creates a client. An empty BaseURL defaults to the OpenAI
// API; pass OpenRouterBaseURL for OpenRouter-hosted models.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		onRetry: cfg.OnRetry,
		logger:  logger,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements outbound.Oracle.
func (c *OpenAIClient) Complete(ctx context.Context, messages []outbound.Message) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if c.apiKey == "" {
		return "", fmt.Errorf("%w: API key not configured", ErrOracleTransport)
	}

	req := openAIRequest{
		Model:       c.model,
		Temperature: 0,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Source,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for i := 0; i <= maxTransportRetries; i++ {
		if i > 0 {
			if c.onRetry != nil {
				c.onRetry()
			}
			select {
			case <-time.After(backoff(i)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retry, err := c.doRequest(ctx, body)
		if err == nil {
			c.logger.Debug("oracle completion",
				"provider", "openai", "model", c.model,
				"elapsed", time.Since(start), "response_len", len(text))
			return text, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: retries exhausted: %v", ErrOracleTransport, lastErr)
}

// doRequest performs one HTTP round trip. The second return says whether the
// failure is retryable.
func (c *OpenAIClient) doRequest(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: status %d: %s", ErrOracleTransport, resp.StatusCode, strings.TrimSpace(string(respBody)))
		return "", retryableStatus(resp.StatusCode), err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("%w: API error: %s", ErrOracleTransport, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("%w: no completion returned", ErrOracleTransport)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

// Compile-time interface verification.
var _ outbound.Oracle = (*OpenAIClient)(nil)
