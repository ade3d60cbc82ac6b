package domain

import (
	"fmt"
	"time"
)

// Default hybrid search weighting: lexical relevance carries slightly
// more weight than vector similarity, and the top 20 chunks are returned.
const (
	DefaultContentWeight = 0.6
	DefaultVectorWeight  = 0.4
	DefaultSearchLimit   = 20
)

// SearchOptions configures a hybrid search query.
type SearchOptions struct {
	// ContentWeight scales the lexical (full-text) relevance score.
	ContentWeight float64

	// VectorWeight scales the vector similarity score.
	VectorWeight float64

	// Limit is the maximum number of results.
	Limit int
}

// DefaultSearchOptions returns the conventional 0.6/0.4 weighting.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		ContentWeight: DefaultContentWeight,
		VectorWeight:  DefaultVectorWeight,
		Limit:         DefaultSearchLimit,
	}
}

// Validate rejects negative weights and normalises the limit.
// Weights are not required to sum to 1, callers conventionally do.
func (o *SearchOptions) Validate() error {
	if o.ContentWeight < 0 {
		return fmt.Errorf("%w: content weight must be >= 0, got %v", ErrInvalidInput, o.ContentWeight)
	}
	if o.VectorWeight < 0 {
		return fmt.Errorf("%w: vector weight must be >= 0, got %v", ErrInvalidInput, o.VectorWeight)
	}
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	return nil
}

// SearchResult is a single ranked hit from hybrid search.
// Ordering by Score descending is the only guaranteed relationship
// between results; ties are broken by newest CreatedAt.
type SearchResult struct {
	// Title is the owning content item's title metadata.
	Title string

	// Snippet is the matched chunk text.
	Snippet string

	// Score is the combined lexical + vector relevance score.
	Score float64

	// CreatedAt is the owning content item's creation time.
	CreatedAt time.Time
}
