package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/core/ports/driven"
	"github.com/recall-kb/recall-cli/internal/core/ports/driving"
	"github.com/recall-kb/recall-cli/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// llmRetries bounds retry attempts for transient LLM failures.
const llmRetries = 2

// DefaultSystemPrompt grounds the model in the retrieved snippets.
// The final instruction is deliberate: with no content the model must
// say so instead of fabricating an answer.
const DefaultSystemPrompt = `You are a helpful personal assistant tasked with helping me recall information that I've written about.

Respond to the query using quotes and samples from the provided content.

- Provide narration and lead with a summary paragraph.
- Speak directly to me.
- Format for readability and use markdown.
- Only use quotes mentioned. Don't use external references.
- If there is no content - say so and stop generating a response. Don't make things up.`

// QueryService retrieves relevant passages via hybrid search.
type QueryService struct {
	store    driven.ContentStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

// NewQueryService creates a new query service.
// The llm parameter is optional (can be nil); Answer then fails with
// domain.ErrLLMUnavailable while Search and Retrieve keep working.
func NewQueryService(
	store driven.ContentStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
) *QueryService {
	return &QueryService{
		store:    store,
		embedder: embedder,
		llm:      llm,
	}
}

// Search embeds the query once and runs the store's hybrid scorer.
func (s *QueryService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Query Execution")
	logger.Debug("Query: %q", query)

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	results, err := s.store.HybridSearch(ctx, query, embedding, opts)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	logger.Info("Results: %d (weights %.2f/%.2f, limit %d)",
		len(results), opts.ContentWeight, opts.VectorWeight, opts.Limit)
	return results, nil
}

// Retrieve formats search results as "{title} - {snippet}" blocks
// joined by blank lines. An empty result set yields an empty string.
func (s *QueryService) Retrieve(
	ctx context.Context, query string, opts domain.SearchOptions,
) (string, error) {
	results, err := s.Search(ctx, query, opts)
	if err != nil {
		return "", err
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("%s - %s", r.Title, r.Snippet)
	}
	return strings.Join(blocks, "\n\n"), nil
}

// Answer retrieves grounding content and streams an LLM answer.
func (s *QueryService) Answer(
	ctx context.Context, query, systemPrompt string, emit func(delta string) error,
) error {
	if s.llm == nil {
		return domain.ErrLLMUnavailable
	}

	docs, err := s.Retrieve(ctx, query, domain.DefaultSearchOptions())
	if err != nil {
		return err
	}

	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	user := fmt.Sprintf("Query: %s\n\nContent:\n\n%s", query, docs)

	logger.Debug("Answering with %d characters of grounding content", len(docs))

	opts := driven.CompleteOptions{
		MaxTokens:   1024,
		Temperature: 0,
	}

	// Retry only when the failure happened before any output arrived;
	// a stream that already emitted text cannot be restarted cleanly.
	emitted := false
	wrapped := func(delta string) error {
		emitted = true
		return emit(delta)
	}

	backoff := retry.WithMaxRetries(llmRetries, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		streamErr := s.llm.StreamComplete(ctx, systemPrompt, user, opts, wrapped)
		if streamErr == nil {
			return nil
		}
		if !emitted && errors.Is(streamErr, domain.ErrLLMUnavailable) {
			return retry.RetryableError(streamErr)
		}
		return streamErr
	})
}

// embedQuery embeds the query text with bounded retry on transient
// backend failures, matching ingestion's retry policy.
func (s *QueryService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var embedding []float32
	backoff := retry.WithMaxRetries(embedRetries, retry.NewFibonacci(200*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var embedErr error
		embedding, embedErr = s.embedder.Embed(ctx, query)
		if embedErr == nil {
			return nil
		}
		if errors.Is(embedErr, domain.ErrEmbeddingUnavailable) {
			return retry.RetryableError(embedErr)
		}
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return embedding, nil
}
