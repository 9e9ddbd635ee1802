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

// DefaultAnthropicBaseURL is the Anthropic API endpoint.
const DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// anthropicVersion is the API version header value.
const anthropicVersion = "2023-06-01"

// anthropicMaxTokens bounds completion length. Watcher and judge replies are
// short JSON objects; the headroom covers judge explanations.
const anthropicMaxTokens = 4096

// AnthropicConfig configures an Anthropic client.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// OnRetry, when set, is invoked once per transport retry.
	OnRetry func()
}

// AnthropicClient talks to the Anthropic messages API. System-role messages
// are folded into the request's system field, as the API requires.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	onRetry    func()
	logger     *slog.Logger
}

// NewAnthropicClient creates a client.
func NewAnthropicClient(cfg AnthropicConfig, logger *slog.Logger) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &AnthropicClient{
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

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements outbound.Oracle.
func (c *AnthropicClient) Complete(ctx context.Context, messages []outbound.Message) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if c.apiKey == "" {
		return "", fmt.Errorf("%w: API key not configured", ErrOracleTransport)
	}

	req := anthropicRequest{
		Model:       c.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: 0,
	}
	var system []string
	for _, m := range messages {
		if m.Role == outbound.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	req.System = strings.Join(system, "\n\n")

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
				"provider", "anthropic", "model", c.model,
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

func (c *AnthropicClient) doRequest(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

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

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("%w: API error: %s", ErrOracleTransport, parsed.Error.Message)
	}

	var b strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", false, fmt.Errorf("%w: no completion returned", ErrOracleTransport)
	}
	return text, false, nil
}

// Compile-time interface verification.
var _ outbound.Oracle = (*AnthropicClient)(nil)
