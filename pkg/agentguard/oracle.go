package agentguard

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/oracle"
	"github.com/Aegis-Guard/Aegisguard/internal/config"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
	"github.com/Aegis-Guard/Aegisguard/internal/telemetry"
)

// roleOracles holds one resolved oracle per guard role.
type roleOracles struct {
	watcher   outbound.Oracle
	threat    outbound.Oracle
	judge     outbound.Oracle
	chief     outbound.Oracle
	refusal   outbound.Oracle
	extractor outbound.Oracle
}

// newOracles resolves the model client behind each role.
func newOracles(ctx context.Context, cfg config.OraclesConfig, metrics *telemetry.Metrics, logger *slog.Logger) (roleOracles, error) {
	var o roleOracles
	for _, bind := range []struct {
		role string
		cfg  config.OracleConfig
		dst  *outbound.Oracle
	}{
		{"watcher", cfg.Watcher, &o.watcher},
		{"threat", cfg.Threat, &o.threat},
		{"judge", cfg.Judge, &o.judge},
		{"chief_judge", cfg.ChiefJudge, &o.chief},
		{"refusal", cfg.Refusal, &o.refusal},
		{"extractor", cfg.Extractor, &o.extractor},
	} {
		client, err := newOracle(ctx, bind.cfg, metrics.RecordOracleRetry, logger.With("role", bind.role))
		if err != nil {
			return roleOracles{}, err
		}
		*bind.dst = tracedOracle{inner: client, role: bind.role, metrics: metrics}
	}
	return o, nil
}

// tracedOracle spans and counts every completion with the guard role that
// asked for it.
type tracedOracle struct {
	inner   outbound.Oracle
	role    string
	metrics *telemetry.Metrics
}

func (t tracedOracle) Complete(ctx context.Context, messages []outbound.Message) (string, error) {
	ctx, span := telemetry.Tracer("oracle").Start(ctx, "oracle.complete")
	span.SetAttributes(attribute.String("role", t.role))
	defer span.End()
	text, err := t.inner.Complete(ctx, messages)
	t.metrics.RecordOracleRequest(t.role, err)
	return text, err
}

// newOracle builds one model client. An explicit base URL pins the role to
// the OpenAI-compatible wire protocol; otherwise the provider is inferred
// from the model name.
func newOracle(ctx context.Context, cfg config.OracleConfig, onRetry func(), logger *slog.Logger) (outbound.Oracle, error) {
	if cfg.BaseURL != "" {
		return oracle.NewOpenAIClient(oracle.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.TimeoutDuration(),
			OnRetry: onRetry,
		}, logger), nil
	}
	return oracle.Resolve(ctx, cfg.Model, credentials(cfg.APIKey), cfg.TimeoutDuration(), onRetry, logger)
}

// credentials spreads the configured key across every provider slot, with
// the provider's conventional environment variable as fallback. Resolution
// picks the slot matching the model's provider.
func credentials(apiKey string) oracle.Credentials {
	return oracle.Credentials{
		OpenAIKey:     firstNonEmpty(apiKey, os.Getenv("OPENAI_API_KEY")),
		AnthropicKey:  firstNonEmpty(apiKey, os.Getenv("ANTHROPIC_API_KEY")),
		GeminiKey:     firstNonEmpty(apiKey, os.Getenv("GEMINI_API_KEY")),
		OpenRouterKey: firstNonEmpty(apiKey, os.Getenv("OPENROUTER_API_KEY")),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
