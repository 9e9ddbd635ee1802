// Package agentguard assembles a complete guard system from configuration:
// model oracles per role, the predicate similarity index, the verifier, the
// mediator pipeline, and the host interception adapter. Hosts embed the
// System in their workflow loop and wire the adapter's hooks into their
// runtime.
package agentguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/inbound/runtime"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cache"
	celeval "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cel"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/embed"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/index"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/memory"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/trace"
	"github.com/Aegis-Guard/Aegisguard/internal/config"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
	"github.com/Aegis-Guard/Aegisguard/internal/service"
	"github.com/Aegis-Guard/Aegisguard/internal/telemetry"
)

// serviceName identifies the guard in telemetry resources.
const serviceName = "aegis-guard"

// System is an assembled guard: the mediator, the interception adapter, and
// the observability plumbing they share.
type System struct {
	Guard       *service.Guard
	Adapter     *runtime.Adapter
	Termination outbound.Termination
	Metrics     *telemetry.Metrics
	Registry    *prometheus.Registry

	traceWriter *trace.Writer
	shutdown    telemetry.Shutdown
	logger      *slog.Logger
}

// Options tune system assembly beyond the configuration file.
type Options struct {
	// Version is reported to telemetry and MCP servers.
	Version string
	// Logger overrides the config-derived logger.
	Logger *slog.Logger
	// Termination is the host's kill switch; nil uses a process-local flag.
	Termination outbound.Termination
}

// New assembles a System from configuration. The context bounds setup-time
// network calls (index bootstrap, telemetry init); it does not scope the
// system's lifetime.
func New(ctx context.Context, cfg *config.Config, opts Options) (*System, error) {
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg.Logging)
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Enabled, serviceName, version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		go func() {
			if err := telemetry.ServeMetrics(ctx, addr, registry, logger); err != nil {
				logger.Error("metrics endpoint failed", "addr", addr, "error", err)
			}
		}()
	}

	evaluator, err := celeval.NewEvaluator(nil)
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	embedder, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}
	idx, err := newIndex(ctx, cfg.Index, embedder, logger)
	if err != nil {
		return nil, err
	}

	oracles, err := newOracles(ctx, cfg.Oracles, metrics, logger)
	if err != nil {
		return nil, err
	}

	var decisions policy.DecisionQueryLog = memory.NewDecisionStore(cfg.Guard.DecisionLogSize)
	var traceWriter *trace.Writer
	if cfg.Trace.Enabled {
		traceWriter, err = trace.NewWriter(trace.Config{
			Dir:           cfg.Trace.Dir,
			RetentionDays: cfg.Trace.RetentionDays,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open decision trace: %w", err)
		}
		decisions = teeLog{mem: decisions, writer: traceWriter}
	}

	guard := service.NewGuard(service.GuardParams{
		Predicates: memory.NewPredicateStore(),
		Verifier:   service.NewVerifier(evaluator, cfg.Guard.VerdictCacheSize, logger),
		Watcher:    service.NewPredicateWatcher(oracles.watcher, logger),
		Threats:    service.NewThreatWatcher(oracles.threat, logger),
		Judge:      service.NewJudge(oracles.judge, logger),
		ChiefJudge: service.NewJudge(oracles.chief, logger),
		Extractor:  service.NewExtractor(oracles.extractor, cache.NewFileStore(logger), cfg.Ingest.ChunkSize, logger),
		Index:      idx,
		Decisions:  decisions,
		Metrics:    metrics,
		Logger:     logger,

		MessageBufferSize:   cfg.Guard.MessageBufferSize,
		SenderHistorySize:   cfg.Guard.SenderHistorySize,
		PredicateUpdateSize: cfg.Guard.PredicateUpdateSize,
		ForceMessageCheck:   cfg.Guard.ForceMessageCheck,
	})

	term := opts.Termination
	if term == nil {
		term = outbound.NewTerminationFlag()
	}
	adapter := runtime.NewAdapter(guard,
		service.NewRefusalClassifier(oracles.refusal, logger),
		term,
		runtime.Config{
			RefusalThreshold: cfg.Interception.RefusalThreshold,
			GPTShortcut:      cfg.Interception.GPTShortcut,
		}, logger)

	return &System{
		Guard:       guard,
		Adapter:     adapter,
		Termination: term,
		Metrics:     metrics,
		Registry:    registry,
		traceWriter: traceWriter,
		shutdown:    shutdown,
		logger:      logger,
	}, nil
}

// Close flushes the decision trace and shuts down telemetry.
func (s *System) Close(ctx context.Context) error {
	var errs []error
	if s.traceWriter != nil {
		if err := s.traceWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (outbound.Embedder, error) {
	switch cfg.Provider {
	case "", "local":
		return embed.NewLocalEmbedder(), nil
	case "genai":
		e, err := embed.NewGenAIEmbedder(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newIndex(ctx context.Context, cfg config.IndexConfig, embedder outbound.Embedder, logger *slog.Logger) (outbound.VectorIndex, error) {
	switch cfg.Backend {
	case "", "memory":
		return index.NewMemoryIndex(embedder), nil
	case "qdrant":
		idx, err := index.NewQdrantIndex(ctx, index.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
		}, embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("connect qdrant index: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
