package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cache"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/oracle"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// DefaultChunkSize is the maximum characters per extraction chunk.
const DefaultChunkSize = 10000

// Extractor runs the four-stage ingestion pipeline that turns a natural
// language policy document into rule definitions:
//
//  1. extract the enforceable rules and their terminology
//  2. translate each rule into propositional logic with predicates
//  3. verify and refine the predicates
//  4. merge redundant predicates and emit the final JSON definitions
//
// Only the last stage parses JSON; the intermediate stages pass the
// oracle's text straight through. Documents accumulate: each Extract call
// re-processes all text ingested so far, so later documents can merge
// predicates with earlier ones. Results are cached next to the source file;
// a cache hit skips the pipeline entirely.
type Extractor struct {
	oracle    outbound.Oracle
	cache     *cache.FileStore
	chunkSize int
	logger    *slog.Logger

	mu  sync.Mutex
	raw string
}

// NewExtractor creates an extractor. A non-positive chunkSize falls back to
// DefaultChunkSize.
func NewExtractor(o outbound.Oracle, store *cache.FileStore, chunkSize int, logger *slog.Logger) *Extractor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Extractor{
		oracle:    o,
		cache:     store,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Extract ingests the policy document at path and returns its rule
// definitions. Unlike the runtime checkpoints this pipeline is not
// fail-open: a persistent oracle or parse failure aborts the ingestion,
// because installing a partial policy would silently weaken enforcement.
func (e *Extractor) Extract(ctx context.Context, path string) ([]policy.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy document: %w", err)
	}

	e.mu.Lock()
	if e.raw == "" {
		e.raw = string(data)
	} else {
		e.raw = e.raw + "\n\n" + string(data)
	}
	content := e.raw
	e.mu.Unlock()

	if defs, ok, err := e.cache.Load(path); err != nil {
		return nil, err
	} else if ok {
		return defs, nil
	}

	chunks := splitChunks(content, e.chunkSize)
	e.logger.Info("extracting policy document", "path", path, "chunks", len(chunks))

	var defs []policy.Definition
	for i, chunk := range chunks {
		chunkDefs, err := e.extractChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("extract chunk %d/%d of %s: %w", i+1, len(chunks), path, err)
		}
		defs = append(defs, chunkDefs...)
	}

	if err := e.cache.Save(path, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// extractChunk runs one chunk through all four stages.
func (e *Extractor) extractChunk(ctx context.Context, chunk string) ([]policy.Definition, error) {
	rules, err := e.stage(ctx, policyExtractionSystem, extractionDocumentUser(chunk))
	if err != nil {
		return nil, fmt.Errorf("policy extraction: %w", err)
	}

	logical, err := e.stage(ctx, logicExtractionSystem, extractionUser(rules))
	if err != nil {
		return nil, fmt.Errorf("logic translation: %w", err)
	}

	verified, err := e.stage(ctx, verifyPredicateSystem, extractionUser(logical))
	if err != nil {
		return nil, fmt.Errorf("predicate verification: %w", err)
	}

	var defs []policy.Definition
	messages := []outbound.Message{
		outbound.SystemMessage(refinePredicateSystem),
		outbound.UserMessage(extractionUser(verified)),
	}
	if err := oracle.CompleteJSON(ctx, e.oracle, messages, &defs); err != nil {
		return nil, fmt.Errorf("predicate refinement: %w", err)
	}
	return defs, nil
}

func (e *Extractor) stage(ctx context.Context, system, user string) (string, error) {
	return e.oracle.Complete(ctx, []outbound.Message{
		outbound.SystemMessage(system),
		outbound.UserMessage(user),
	})
}

// splitChunks splits the content on newlines into chunks of whole
// paragraphs, each at most maxSize characters. A single paragraph longer
// than maxSize becomes its own oversized chunk rather than being cut.
func splitChunks(content string, maxSize int) []string {
	paragraphs := strings.Split(content, "\n")
	var chunks []string
	var current string

	for _, paragraph := range paragraphs {
		if len(current)+len(paragraph)+1 > maxSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = paragraph
		} else if current != "" {
			current += "\n" + paragraph
		} else {
			current = paragraph
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}
