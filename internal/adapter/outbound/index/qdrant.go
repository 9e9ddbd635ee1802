package index

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// namePayloadField is the payload key that carries the document id (the
// predicate name) so queries can map points back to names.
const namePayloadField = "name"

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
}

// QdrantIndex is a Qdrant-backed outbound.VectorIndex. Point ids are derived
// deterministically from document ids so Add is an upsert.
type QdrantIndex struct {
	client     *qdrant.Client
	embedder   outbound.Embedder
	collection string
	logger     *slog.Logger
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("index: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("index: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantIndex connects to the Qdrant server via gRPC and ensures the
// collection exists with the embedder's dimensionality.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, embedder outbound.Embedder, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                30 * time.Second,
				Timeout:             10 * time.Second,
				PermitWithoutStream: true,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("index: connect to qdrant at %s:%d: %w", host, port, err)
	}

	q := &QdrantIndex{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		logger:     logger,
	}
	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

// ensureCollection creates the collection if it doesn't already exist.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("index: check collection exists: %w", err)
	}
	if exists {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
		return nil
	}

	dims := uint64(q.embedder.Dimensions()) //nolint:gosec
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("index: create collection %q: %w", q.collection, err)
	}
	q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", dims)
	return nil
}

// Add implements outbound.VectorIndex. The point id is a name-based UUID of
// the document id, so re-adding a predicate replaces its point.
func (q *QdrantIndex) Add(ctx context.Context, id, document string) error {
	vec, err := q.embedder.Embed(ctx, document)
	if err != nil {
		return fmt.Errorf("index: embed document %q: %w", id, err)
	}

	pointID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(pointID.String()),
				Vectors: qdrant.NewVectorsDense(vec),
				Payload: qdrant.NewValueMap(map[string]any{namePayloadField: id}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("index: qdrant upsert %q: %w", id, err)
	}
	return nil
}

// Query implements outbound.VectorIndex.
func (q *QdrantIndex) Query(ctx context.Context, text string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	vec, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}

	limit := uint64(n) //nolint:gosec
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant query: %w", err)
	}

	out := make([]string, 0, len(scored))
	for _, sp := range scored {
		name := sp.Payload[namePayloadField].GetStringValue()
		if name == "" {
			q.logger.Warn("qdrant: point without name payload", "id", sp.Id.GetUuid())
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// Compile-time interface verification.
var _ outbound.VectorIndex = (*QdrantIndex)(nil)
