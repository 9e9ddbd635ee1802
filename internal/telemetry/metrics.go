// Package telemetry holds the observability plumbing: Prometheus metrics
// for the checkpoint pipeline and the OpenTelemetry tracer/meter setup.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the guard. Pass to components
// that need to record metrics; a nil *Metrics disables recording so wiring
// stays optional.
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	CheckpointLatency *prometheus.HistogramVec
	OracleRequests    *prometheus.CounterVec
	OracleRetries     prometheus.Counter
	VerdictCacheHits  prometheus.Counter
	VerdictCacheMiss  prometheus.Counter
	ThreatLevel       *prometheus.GaugeVec
	IngestionDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegisguard",
				Name:      "decisions_total",
				Help:      "Total checkpoint decisions",
			},
			[]string{"kind", "outcome", "stage"}, // kind=action/message, outcome=allow/deny
		),
		CheckpointLatency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aegisguard",
				Name:      "checkpoint_duration_seconds",
				Help:      "Checkpoint duration in seconds, end to end",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		OracleRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aegisguard",
				Name:      "oracle_requests_total",
				Help:      "Total oracle completions by role and status",
			},
			[]string{"role", "status"}, // status=ok/error
		),
		OracleRetries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegisguard",
				Name:      "oracle_retries_total",
				Help:      "Total oracle transport retries",
			},
		),
		VerdictCacheHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegisguard",
				Name:      "verdict_cache_hits_total",
				Help:      "Verifier verdicts served from the cache",
			},
		),
		VerdictCacheMiss: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "aegisguard",
				Name:      "verdict_cache_misses_total",
				Help:      "Verifier verdicts computed fresh",
			},
		),
		ThreatLevel: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "aegisguard",
				Name:      "threat_level",
				Help:      "Current threat level per agent (0-4)",
			},
			[]string{"agent"},
		),
		IngestionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "aegisguard",
				Name:      "ingestion_duration_seconds",
				Help:      "Policy document ingestion duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
	}
}

// RecordDecision counts one checkpoint outcome and its latency.
func (m *Metrics) RecordDecision(kind string, allowed bool, stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.DecisionsTotal.WithLabelValues(kind, outcome, stage).Inc()
	m.CheckpointLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts one verdict cache lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.VerdictCacheHits.Inc()
	} else {
		m.VerdictCacheMiss.Inc()
	}
}

// RecordThreatLevel exports an agent's current level.
func (m *Metrics) RecordThreatLevel(agent string, level int) {
	if m == nil {
		return
	}
	m.ThreatLevel.WithLabelValues(agent).Set(float64(level))
}

// RecordOracleRequest counts one oracle completion.
func (m *Metrics) RecordOracleRequest(role string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OracleRequests.WithLabelValues(role, status).Inc()
}

// RecordOracleRetry counts one oracle transport retry.
func (m *Metrics) RecordOracleRetry() {
	if m == nil {
		return
	}
	m.OracleRetries.Inc()
}

// RecordIngestion records one policy document ingestion.
func (m *Metrics) RecordIngestion(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.IngestionDuration.Observe(elapsed.Seconds())
}

// ServeMetrics runs a /metrics endpoint for the registry until ctx is
// cancelled. It blocks; run it in a goroutine.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
