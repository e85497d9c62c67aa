package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// VectorRecord is one upsert into the semantic index.
type VectorRecord struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// VectorIndex is a namespaced similarity index.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]types.SimilarityMatch, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Chunk is a piece of text to index.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Retriever provides best-effort semantic search over a VectorIndex.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder Embedder, index VectorIndex, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
	}
}

// Query returns up to k matches for text within namespace. It never fails: embedding and
// index errors are logged and yield an empty result.
func (r *Retriever) Query(ctx context.Context, text, namespace string, k int) []types.SimilarityMatch {
	return r.Search(ctx, text, namespace, k, nil)
}

// Search is Query restricted to records whose metadata contains every filter pair.
func (r *Retriever) Search(ctx context.Context, text, namespace string, k int, filter map[string]any) []types.SimilarityMatch {
	if strings.TrimSpace(text) == "" || namespace == "" {
		return []types.SimilarityMatch{}
	}
	if k <= 0 {
		k = r.topK
	}
	if r.embedder == nil || r.index == nil {
		slog.Warn("retriever not configured, skipping enrichment", "namespace", namespace)
		metrics.RecordEnrichment("skipped")
		return []types.SimilarityMatch{}
	}

	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		slog.Error("failed to embed enrichment query", "namespace", namespace, "error", err.Error())
		metrics.RecordEnrichment("error")
		return []types.SimilarityMatch{}
	}
	if len(vec) == 0 || isZeroVector(vec) {
		metrics.RecordEnrichment("skipped")
		return []types.SimilarityMatch{}
	}

	matches, err := r.index.Query(ctx, namespace, vec, k, filter)
	if err != nil {
		slog.Error("failed to query semantic index", "namespace", namespace, "error", err.Error())
		metrics.RecordEnrichment("error")
		return []types.SimilarityMatch{}
	}
	if len(matches) == 0 {
		metrics.RecordEnrichment("empty")
		return []types.SimilarityMatch{}
	}
	metrics.RecordEnrichment("hit")
	return matches
}

// Index embeds chunks and upserts them into namespace. Unlike Query, failures are returned.
func (r *Retriever) Index(ctx context.Context, namespace string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if r.embedder == nil || r.index == nil {
		return fmt.Errorf("retriever not properly configured")
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d want %d", len(vectors), len(chunks))
	}

	records := make([]VectorRecord, 0, len(chunks))
	for i, c := range chunks {
		records = append(records, VectorRecord{
			ID:       c.ID,
			Content:  c.Content,
			Vector:   vectors[i],
			Metadata: c.Metadata,
		})
	}
	if err := r.index.Upsert(ctx, namespace, records); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Forget drops every record in namespace.
func (r *Retriever) Forget(ctx context.Context, namespace string) error {
	if namespace == "" {
		return nil
	}
	if r.index == nil {
		return fmt.Errorf("retriever not properly configured")
	}
	if err := r.index.DeleteNamespace(ctx, namespace); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	return nil
}
