package driven

import "context"

// LLMService produces grounded natural-language answers from retrieved
// content. This is an optional service - when nil, the ai command is
// disabled and plain retrieval still works.
type LLMService interface {
	// StreamComplete sends a system prompt plus user message and streams
	// the response. emit is called once per text delta in arrival order;
	// returning an error from emit cancels the stream.
	StreamComplete(ctx context.Context, system, user string, opts CompleteOptions, emit func(delta string) error) error

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// CompleteOptions configures a completion request.
type CompleteOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
