// Package retriever implements hybrid retrieval: a dense vector search and a
// lexical BM25 search run concurrently, then their rankings are fused with
// Reciprocal Rank Fusion.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/databases"
	"github.com/mentora-ai/mentora/pkg/observability"
)

var (
	// ErrUnknownCollection is returned when a request names a collection
	// missing from the registry.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrRetrievalUnavailable is returned when both backends failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

const maxInitialK = 64

// RankedChunk is a hydrated chunk with its per-backend ranks and fused score.
// Ranks are 1-indexed; 0 means the chunk was absent from that backend's list.
type RankedChunk struct {
	databases.Chunk
	BM25Rank   int
	VectorRank int
	FusedScore float64
}

// Embedder produces the dense query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the dense backend (Qdrant).
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]databases.VectorHit, error)
	Fetch(ctx context.Context, collection string, pointIDs []string) ([]databases.Chunk, error)
}

// LexicalStore is the BM25 backend (Elasticsearch).
type LexicalStore interface {
	Search(ctx context.Context, index string, lemmatizedQuery string, topK int) ([]databases.LexicalHit, error)
}

// NormalizeFunc lemmatizes query text for BM25 parity with the index.
type NormalizeFunc func(text string) string

type HybridRetriever struct {
	registry  *config.Registry
	embedder  Embedder
	vectors   VectorStore
	lexical   LexicalStore
	normalize NormalizeFunc
	weights   Weights
	metrics   *observability.Metrics
}

type Option func(*HybridRetriever)

// WithMetrics enables retrieval metrics recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *HybridRetriever) {
		r.metrics = m
	}
}

func New(registry *config.Registry, embedder Embedder, vectors VectorStore, lexical LexicalStore, normalize NormalizeFunc, weights Weights, opts ...Option) *HybridRetriever {
	r := &HybridRetriever{
		registry:  registry,
		embedder:  embedder,
		vectors:   vectors,
		lexical:   lexical,
		normalize: normalize,
		weights:   weights,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve runs both backends for the query and returns at most finalK fused
// chunks. A single backend failure degrades to the other backend's ranking;
// only a double failure is an error.
func (r *HybridRetriever) Retrieve(ctx context.Context, collection, query string, initialK, finalK int) ([]RankedChunk, error) {
	ref, ok := r.registry.Resolve(collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if finalK < 1 {
		return nil, fmt.Errorf("final_k must be >= 1, got %d", finalK)
	}
	initialK = clamp(initialK, 1, maxInitialK)

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveRetrieval(collection, time.Since(start))
		}
	}()

	var (
		vecHits []databases.VectorHit
		lexHits []databases.LexicalHit
		vecErr  error
		lexErr  error
	)

	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		vecHits, vecErr = r.vectorSearch(ctx, ref.QdrantCollection, query, initialK)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		lexHits, lexErr = r.lexicalSearch(ctx, ref.ESIndex, query, initialK)
	}()
	<-done
	<-done

	if vecErr != nil && lexErr != nil {
		return nil, fmt.Errorf("%w: vector: %v; lexical: %v", ErrRetrievalUnavailable, vecErr, lexErr)
	}
	if vecErr != nil {
		slog.Warn("vector search failed, continuing with BM25 only",
			"collection", collection, "error", vecErr)
		r.recordFailure("vector")
	}
	if lexErr != nil {
		slog.Warn("BM25 search failed, continuing with vector only",
			"collection", collection, "error", lexErr)
		r.recordFailure("lexical")
	}

	fused := fuse(lexHits, vecHits, r.weights)
	if len(fused) > finalK {
		fused = fused[:finalK]
	}

	return r.hydrate(ctx, ref.QdrantCollection, fused, vecHits)
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, collection, query string, topK int) ([]databases.VectorHit, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	return r.vectors.Search(ctx, collection, vector, topK)
}

func (r *HybridRetriever) lexicalSearch(ctx context.Context, index, query string, topK int) ([]databases.LexicalHit, error) {
	lemmatized := r.normalize(query)
	if lemmatized == "" {
		return nil, nil
	}
	return r.lexical.Search(ctx, index, lemmatized, topK)
}

// hydrate attaches chunk payloads to the fused ranking. Vector hits already
// carry their payload; BM25-only hits are fetched from Qdrant in one batch.
func (r *HybridRetriever) hydrate(ctx context.Context, qdrantCollection string, fused []fusedPoint, vecHits []databases.VectorHit) ([]RankedChunk, error) {
	payloads := make(map[string]databases.Chunk, len(vecHits))
	for _, hit := range vecHits {
		payloads[hit.PointID] = hit.Chunk
	}

	var missing []string
	for _, point := range fused {
		if _, ok := payloads[point.PointID]; !ok {
			missing = append(missing, point.PointID)
		}
	}
	if len(missing) > 0 {
		fetched, err := r.vectors.Fetch(ctx, qdrantCollection, missing)
		if err != nil {
			slog.Warn("failed to hydrate BM25-only chunks", "count", len(missing), "error", err)
		}
		for _, chunk := range fetched {
			payloads[chunk.PointID] = chunk
		}
	}

	results := make([]RankedChunk, 0, len(fused))
	for _, point := range fused {
		chunk, ok := payloads[point.PointID]
		if !ok {
			slog.Debug("dropping chunk without payload", "point_id", point.PointID)
			continue
		}
		results = append(results, RankedChunk{
			Chunk:      chunk,
			BM25Rank:   point.BM25Rank,
			VectorRank: point.VectorRank,
			FusedScore: point.Score,
		})
	}
	return results, nil
}

func (r *HybridRetriever) recordFailure(backend string) {
	if r.metrics != nil {
		r.metrics.RecordBackendFailure(backend)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
