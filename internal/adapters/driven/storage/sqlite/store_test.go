package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store with the source table
// populated from the default chunk policy.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	require.NoError(t, store.SyncSources(context.Background(), domain.DefaultChunkPolicy()))
	return store
}

// vec builds a padded test embedding so all vectors share dimensions.
func vec(values ...float32) []float32 {
	out := make([]float32, 4)
	copy(out, values)
	return out
}

func TestCreateItem_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	meta := map[string]any{
		"title": "A",
		"date":  time.Date(2023, 5, 17, 9, 30, 0, 0, time.UTC),
	}
	chunks := []domain.ChunkInput{
		{Snippet: "The sky is blue.", Embedding: vec(1, 0)},
		{Snippet: "Clouds drift by.", Embedding: vec(0, 1)},
	}

	id, err := store.CreateItem(ctx, domain.SourceBlog, meta, chunks)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	item, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBlog, item.Kind)
	assert.Equal(t, "A", item.Title())
	// Dates are stored as RFC 3339 strings, not time values.
	assert.Equal(t, "2023-05-17T09:30:00Z", item.Meta["date"])

	got, err := store.GetChunks(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, "The sky is blue.", got[0].Snippet)
	assert.Equal(t, vec(1, 0), got[0].Embedding)
	assert.Equal(t, 1, got[1].Position)
	assert.Equal(t, "Clouds drift by.", got[1].Snippet)
}

func TestGetItem_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteItem_CascadesToChunks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.CreateItem(ctx, domain.SourceNotes, map[string]any{"title": "gone"},
		[]domain.ChunkInput{{Snippet: "soon deleted", Embedding: vec(1)}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteItem(ctx, id))

	_, err = store.GetItem(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunks, err := store.GetChunks(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// The deleted chunk must not resurface through the FTS index.
	results, err := store.HybridSearch(ctx, "deleted", vec(1), domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteItem_CascadesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store1.SyncSources(ctx, domain.DefaultChunkPolicy()))

	id, err := store1.CreateItem(ctx, domain.SourceNotes, map[string]any{"title": "gone"},
		[]domain.ChunkInput{{Snippet: "soon deleted", Embedding: vec(1)}})
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	// The cascade must hold on connections the deleting store opens
	// itself, not just the one migrations ran on.
	store2, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store2.Close()) })

	require.NoError(t, store2.DeleteItem(ctx, id))

	chunks, err := store2.GetChunks(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCountItems(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.CreateItem(ctx, domain.SourceMicroblog, nil,
			[]domain.ChunkInput{{Snippet: "post", Embedding: vec(1)}})
		require.NoError(t, err)
	}
	_, err := store.CreateItem(ctx, domain.SourceBlog, nil,
		[]domain.ChunkInput{{Snippet: "entry", Embedding: vec(1)}})
	require.NoError(t, err)

	counts, err := store.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.SourceMicroblog])
	assert.Equal(t, 1, counts[domain.SourceBlog])
}

func TestHybridSearch_EmptyCorpus(t *testing.T) {
	store := setupTestStore(t)

	results, err := store.HybridSearch(context.Background(), "anything", vec(1), domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearch_MatchingChunk(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "A"},
		[]domain.ChunkInput{{Snippet: "The sky is blue. Clouds drift by.", Embedding: vec(1, 0)}})
	require.NoError(t, err)

	results, err := store.HybridSearch(ctx, "sky", vec(1, 0), domain.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "A", results[0].Title)
	assert.Equal(t, "The sky is blue. Clouds drift by.", results[0].Snippet)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestHybridSearch_RanksLexicalMatchFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "match"},
		[]domain.ChunkInput{{Snippet: "Sailing across the harbour at dawn.", Embedding: vec(1, 0)}})
	require.NoError(t, err)

	_, err = store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "other"},
		[]domain.ChunkInput{{Snippet: "Notes about compiler internals.", Embedding: vec(1, 0)}})
	require.NoError(t, err)

	// Identical embeddings: only the lexical signal separates the two.
	results, err := store.HybridSearch(ctx, "harbour sailing", vec(1, 0), domain.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "match", results[0].Title)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHybridSearch_VectorSignalWithoutLexicalMatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "near"},
		[]domain.ChunkInput{{Snippet: "Wholly unrelated words here.", Embedding: vec(1, 0)}})
	require.NoError(t, err)

	_, err = store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "far"},
		[]domain.ChunkInput{{Snippet: "Equally unrelated other words.", Embedding: vec(-1, 0)}})
	require.NoError(t, err)

	results, err := store.HybridSearch(ctx, "zzzunmatched", vec(1, 0), domain.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Title)
	assert.Equal(t, "far", results[1].Title)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHybridSearch_VectorWeightFavoursCloserEmbedding(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Identical snippets give equal BM25 rank, so only the vector
	// signal separates the two items.
	_, err := store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "close"},
		[]domain.ChunkInput{{Snippet: "Harbour lights at dawn.", Embedding: vec(1, 0)}})
	require.NoError(t, err)

	_, err = store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "distant"},
		[]domain.ChunkInput{{Snippet: "Harbour lights at dawn.", Embedding: vec(-1, 0)}})
	require.NoError(t, err)

	margin := func(vectorWeight float64) float64 {
		opts := domain.SearchOptions{
			ContentWeight: 1 - vectorWeight,
			VectorWeight:  vectorWeight,
			Limit:         10,
		}
		results, err := store.HybridSearch(ctx, "harbour", vec(1, 0), opts)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "close", results[0].Title)
		require.Equal(t, "distant", results[1].Title)
		return results[0].Score - results[1].Score
	}

	// Raising the vector weight must never demote the vector-closest
	// item, and its lead over the distant one must widen.
	low := margin(0.1)
	high := margin(0.9)
	assert.Greater(t, high, low)
}

func TestHybridSearch_LimitTruncates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.CreateItem(ctx, domain.SourceNotes, nil,
			[]domain.ChunkInput{{Snippet: "common topic note", Embedding: vec(1)}})
		require.NoError(t, err)
	}

	opts := domain.SearchOptions{ContentWeight: 0.6, VectorWeight: 0.4, Limit: 2}
	results, err := store.HybridSearch(ctx, "topic", vec(1), opts)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHybridSearch_RejectsNegativeWeights(t *testing.T) {
	store := setupTestStore(t)

	opts := domain.SearchOptions{ContentWeight: -1, VectorWeight: 0.4, Limit: 5}
	_, err := store.HybridSearch(context.Background(), "q", vec(1), opts)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHybridSearch_ExcludesUnscorableChunks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// One scorable chunk, one with no embedding.
	_, err := store.CreateItem(ctx, domain.SourceBlog, map[string]any{"title": "ok"},
		[]domain.ChunkInput{
			{Snippet: "scorable text", Embedding: vec(1)},
			{Snippet: "vectorless text", Embedding: nil},
		})
	require.NoError(t, err)

	results, err := store.HybridSearch(ctx, "text", vec(1), domain.DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "scorable text", results[0].Snippet)
}

func TestEmbeddingInfo_PinsModel(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, ok, err := store.EmbeddingInfo(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store should have no pinned model")

	require.NoError(t, store.SetEmbeddingInfo(ctx, "nomic-embed-text", 768))

	model, dims, ok, err := store.EmbeddingInfo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nomic-embed-text", model)
	assert.Equal(t, 768, dims)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	store1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	// Reopening must re-run migration discovery without failing.
	store2, err := NewStore(dir)
	require.NoError(t, err)
	assert.NoError(t, store2.Close())
}
