package agentguard

import (
	"context"
	"log/slog"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cache"
	"github.com/Aegis-Guard/Aegisguard/internal/config"
	"github.com/Aegis-Guard/Aegisguard/internal/service"
)

// NewExtractor builds the standalone policy extractor from configuration,
// for callers that run ingestion without assembling the full guard.
func NewExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.Extractor, error) {
	o, err := newOracle(ctx, cfg.Oracles.Extractor, nil, logger.With("role", "extractor"))
	if err != nil {
		return nil, err
	}
	return service.NewExtractor(o, cache.NewFileStore(logger), cfg.Ingest.ChunkSize, logger), nil
}
