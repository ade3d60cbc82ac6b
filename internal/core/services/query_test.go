package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-kb/recall-cli/internal/adapters/driven/storage/memory"
	"github.com/recall-kb/recall-cli/internal/core/domain"
)

// seedStore ingests a small corpus through the real ingest path so
// query tests exercise stored chunks rather than hand-built rows.
func seedStore(t *testing.T, store *memory.ContentStore, embedder *mockEmbeddingService) {
	t.Helper()
	svc := NewIngestService(store, embedder, domain.DefaultChunkPolicy())

	docs := []struct {
		title   string
		content string
	}{
		{"Sky watching", "The sky is blue today."},
		{"Garden notes", "Tomatoes need more water in July."},
		{"Compiler talk", "Escape analysis decides stack or heap."},
	}
	for _, d := range docs {
		_, err := svc.IngestText(context.Background(), domain.SourceNotes,
			map[string]any{"title": d.title}, d.content)
		require.NoError(t, err)
	}
}

func TestSearch_ReturnsMatchingChunkFirst(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{}
	seedStore(t, store, embedder)

	svc := NewQueryService(store, embedder, nil)

	results, err := svc.Search(context.Background(), "what color is the sky",
		domain.DefaultSearchOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Sky watching", results[0].Title)
	assert.Equal(t, "The sky is blue today.", results[0].Snippet)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearch_ScoresAreNonIncreasing(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{}
	seedStore(t, store, embedder)

	svc := NewQueryService(store, embedder, nil)

	results, err := svc.Search(context.Background(), "sky water heap",
		domain.DefaultSearchOptions())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearch_EmptyQueryReturnsNothing(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{}
	seedStore(t, store, embedder)

	svc := NewQueryService(store, embedder, nil)

	before := embedder.calls
	results, err := svc.Search(context.Background(), "   ", domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
	// Blank queries never reach the embedding backend.
	assert.Equal(t, before, embedder.calls)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	store := memory.NewContentStore()
	svc := NewQueryService(store, &mockEmbeddingService{}, nil)

	results, err := svc.Search(context.Background(), "anything", domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_RejectsNegativeWeights(t *testing.T) {
	store := memory.NewContentStore()
	svc := NewQueryService(store, &mockEmbeddingService{}, nil)

	opts := domain.SearchOptions{ContentWeight: -0.1, VectorWeight: 0.4, Limit: 5}
	_, err := svc.Search(context.Background(), "query", opts)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_AppliesLimit(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{}
	seedStore(t, store, embedder)

	svc := NewQueryService(store, embedder, nil)

	opts := domain.SearchOptions{ContentWeight: 0.6, VectorWeight: 0.4, Limit: 1}
	results, err := svc.Search(context.Background(), "sky water heap", opts)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_RetriesTransientEmbedFailure(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{
		failures: 2,
		failWith: domain.ErrEmbeddingUnavailable,
	}
	svc := NewQueryService(store, embedder, nil)

	_, err := svc.Search(context.Background(), "query", domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.calls)
}

func TestRetrieve_FormatsTitleSnippetBlocks(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{}
	seedStore(t, store, embedder)

	svc := NewQueryService(store, embedder, nil)

	docs, err := svc.Retrieve(context.Background(), "sky", domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Contains(t, docs, "Sky watching - The sky is blue today.")
}

func TestRetrieve_EmptyResults(t *testing.T) {
	store := memory.NewContentStore()
	svc := NewQueryService(store, &mockEmbeddingService{}, nil)

	docs, err := svc.Retrieve(context.Background(), "anything", domain.DefaultSearchOptions())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestAnswer_RequiresLLM(t *testing.T) {
	store := memory.NewContentStore()
	svc := NewQueryService(store, &mockEmbeddingService{}, nil)

	err := svc.Answer(context.Background(), "query", "", func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestAnswer_StreamsDeltasWithGrounding(t *testing.T) {
	store := memory.NewContentStore()
	embedder := &mockEmbeddingService{}
	seedStore(t, store, embedder)

	llm := &mockLLMService{deltas: []string{"The sky ", "is blue."}}
	svc := NewQueryService(store, embedder, llm)

	var out strings.Builder
	err := svc.Answer(context.Background(), "what color is the sky", "", func(delta string) error {
		out.WriteString(delta)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "The sky is blue.", out.String())
	assert.Equal(t, DefaultSystemPrompt, llm.system)
	assert.Contains(t, llm.user, "Query: what color is the sky")
	assert.Contains(t, llm.user, "Sky watching - The sky is blue today.")
}

func TestAnswer_CustomSystemPrompt(t *testing.T) {
	store := memory.NewContentStore()
	llm := &mockLLMService{deltas: []string{"ok"}}
	svc := NewQueryService(store, &mockEmbeddingService{}, llm)

	err := svc.Answer(context.Background(), "query", "Answer in French.",
		func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "Answer in French.", llm.system)
}

func TestAnswer_RetriesBeforeFirstDelta(t *testing.T) {
	store := memory.NewContentStore()
	llm := &mockLLMService{
		failures: 2,
		failWith: domain.ErrLLMUnavailable,
		deltas:   []string{"answer"},
	}
	svc := NewQueryService(store, &mockEmbeddingService{}, llm)

	var out strings.Builder
	err := svc.Answer(context.Background(), "query", "", func(delta string) error {
		out.WriteString(delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, "answer", out.String())
}

func TestAnswer_NoRetryAfterFirstDelta(t *testing.T) {
	store := memory.NewContentStore()
	llm := &mockLLMService{
		failAfterEmit: true,
		failWith:      domain.ErrLLMUnavailable,
	}
	svc := NewQueryService(store, &mockEmbeddingService{}, llm)

	err := svc.Answer(context.Background(), "query", "", func(string) error { return nil })
	require.ErrorIs(t, err, domain.ErrLLMUnavailable)
	// A stream that already produced output is never restarted.
	assert.Equal(t, 1, llm.calls)
}
