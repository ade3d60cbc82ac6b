// Package memory provides an in-memory ContentStore used in tests.
//
// It mirrors the SQLite store's behaviour, including the pinned hybrid
// scoring contract, with one simplification: the lexical signal is the
// fraction of query terms present in the snippet rather than a full
// BM25 ranking. Both land in [0,1], so weighting and ordering behave
// the same way.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu     sync.RWMutex
	items  map[string]domain.ContentItem
	chunks map[string][]domain.Chunk

	embeddingModel string
	embeddingDims  int

	// now is injectable so tests can control created_at tie-breaking.
	now func() time.Time
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		items:  make(map[string]domain.ContentItem),
		chunks: make(map[string][]domain.Chunk),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *ContentStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreateItem inserts one content item and its chunks atomically.
func (s *ContentStore) CreateItem(
	_ context.Context, kind domain.SourceKind, meta map[string]any, chunks []domain.ChunkInput,
) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	item := domain.ContentItem{
		ID:        id,
		Kind:      kind,
		Meta:      domain.NormalizeMeta(meta),
		CreatedAt: s.now(),
	}

	stored := make([]domain.Chunk, len(chunks))
	for i, in := range chunks {
		stored[i] = domain.Chunk{
			ID:            uuid.New().String(),
			ContentItemID: id,
			Position:      i,
			Snippet:       in.Snippet,
			Embedding:     in.Embedding,
		}
	}

	s.items[id] = item
	s.chunks[id] = stored
	return id, nil
}

// GetItem retrieves a content item by ID.
func (s *ContentStore) GetItem(_ context.Context, id string) (*domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

// GetChunks returns a content item's chunks ordered by position.
func (s *ContentStore) GetChunks(_ context.Context, contentItemID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[contentItemID]
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// DeleteItem removes an item and all of its chunks.
func (s *ContentStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	delete(s.chunks, id)
	return nil
}

// CountItems returns the number of items stored per source kind.
func (s *ContentStore) CountItems(_ context.Context) (map[domain.SourceKind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.SourceKind]int)
	for _, item := range s.items {
		counts[item.Kind]++
	}
	return counts, nil
}

// HybridSearch ranks all stored chunks against the query.
func (s *ContentStore) HybridSearch(
	_ context.Context, queryText string, queryVec []float32, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		result  domain.SearchResult
		chunkID string
	}
	var hits []scored

	terms := strings.Fields(strings.ToLower(queryText))

	for itemID, chunks := range s.chunks {
		item := s.items[itemID]
		for _, chunk := range chunks {
			if chunk.Snippet == "" || chunk.Embedding == nil {
				continue
			}

			lexical := termOverlap(terms, chunk.Snippet)
			vector := (cosine(queryVec, chunk.Embedding) + 1) / 2
			score := opts.ContentWeight*lexical + opts.VectorWeight*vector

			hits = append(hits, scored{
				result: domain.SearchResult{
					Title:     item.Title(),
					Snippet:   chunk.Snippet,
					Score:     score,
					CreatedAt: item.CreatedAt,
				},
				chunkID: chunk.ID,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		if !hits[i].result.CreatedAt.Equal(hits[j].result.CreatedAt) {
			return hits[i].result.CreatedAt.After(hits[j].result.CreatedAt)
		}
		return hits[i].chunkID < hits[j].chunkID
	})

	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

// EmbeddingInfo reports the pinned embedding model, if any.
func (s *ContentStore) EmbeddingInfo(_ context.Context) (string, int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.embeddingModel == "" {
		return "", 0, false, nil
	}
	return s.embeddingModel, s.embeddingDims, true, nil
}

// SetEmbeddingInfo pins the embedding model for this store.
func (s *ContentStore) SetEmbeddingInfo(_ context.Context, model string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingModel = model
	s.embeddingDims = dimensions
	return nil
}

// Close is a no-op for the in-memory store.
func (s *ContentStore) Close() error {
	return nil
}

// termOverlap returns the fraction of query terms contained in the
// snippet, a simplified stand-in for BM25 that stays in [0,1].
func termOverlap(terms []string, snippet string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(snippet)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// cosine returns the cosine similarity between two vectors, or 0 when
// either has zero magnitude or the dimensions differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
