package driven

import (
	"context"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

// ContentStore persists content items and their chunks, and ranks chunks
// against a query with a server-side hybrid scoring function.
//
// Implementations must guarantee per-document atomicity: CreateItem either
// commits the item row and every chunk row, or nothing at all.
type ContentStore interface {
	// CreateItem inserts one content item and its chunks in a single
	// transaction and returns the new item's ID. Chunk rows are inserted
	// in input order; their Position reflects that order.
	CreateItem(ctx context.Context, kind domain.SourceKind, meta map[string]any, chunks []domain.ChunkInput) (string, error)

	// GetItem retrieves a content item by ID.
	GetItem(ctx context.Context, id string) (*domain.ContentItem, error)

	// GetChunks returns a content item's chunks ordered by position.
	GetChunks(ctx context.Context, contentItemID string) ([]domain.Chunk, error)

	// DeleteItem removes an item and, by cascade, all of its chunks.
	DeleteItem(ctx context.Context, id string) error

	// CountItems returns the number of items stored per source kind.
	CountItems(ctx context.Context) (map[domain.SourceKind]int, error)

	// HybridSearch ranks all stored chunks against the query using the
	// pinned scoring contract:
	//
	//	combined = ContentWeight*lexical + VectorWeight*vector
	//
	// where lexical is the BM25 full-text relevance normalised to [0,1)
	// via m/(1+m) with m = max(-bm25, 0), and vector is the cosine
	// similarity mapped to [0,1] via (cos+1)/2. Results are ordered by
	// combined score descending, ties broken by newest item first, then
	// chunk ID. Chunks with an empty snippet or missing embedding are
	// excluded. An empty corpus yields an empty slice, not an error.
	HybridSearch(ctx context.Context, queryText string, queryVec []float32, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// EmbeddingInfo reports the embedding model and dimensions the store
	// was initialised with, or ok=false for a store with no vectors yet.
	EmbeddingInfo(ctx context.Context) (model string, dimensions int, ok bool, err error)

	// SetEmbeddingInfo pins the embedding model for this store. Vectors
	// from a different model or dimension must never be mixed in.
	SetEmbeddingInfo(ctx context.Context, model string, dimensions int) error

	// Close releases the underlying connection.
	Close() error
}
