package driving

import (
	"context"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

// QueryService retrieves relevant passages for a query, optionally
// summarised by a language model.
type QueryService interface {
	// Search embeds the query once and runs hybrid search.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Retrieve runs Search with the given options and formats each hit
	// as "{title} - {snippet}", joined by blank lines. An empty result
	// yields an empty string, never an error.
	Retrieve(ctx context.Context, query string, opts domain.SearchOptions) (string, error)

	// Answer retrieves grounding content for the query and streams an
	// LLM answer through emit. When systemPrompt is empty a default
	// prompt is used that forbids fabricating content beyond the
	// retrieved snippets.
	Answer(ctx context.Context, query, systemPrompt string, emit func(delta string) error) error
}
