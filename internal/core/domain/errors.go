package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidSource indicates an unknown source kind was supplied.
	// Rejected before any I/O happens.
	ErrInvalidSource = errors.New("invalid source kind")

	// ErrDocumentRead indicates a document file is missing, unreadable,
	// or has malformed front matter. Bulk imports skip the document and
	// continue with the next one.
	ErrDocumentRead = errors.New("document read failed")

	// ErrEmbeddingUnavailable indicates the embedding backend is
	// unreachable or errored. The current document's indexing is aborted
	// with no partial rows committed.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM backend is not configured or
	// unreachable. Grounded summarisation is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrStore indicates a store failure: connection loss, constraint
	// violation, or transaction failure. The transaction is rolled back.
	ErrStore = errors.New("store failure")

	// ErrEmbeddingMismatch indicates the configured embedding model does
	// not match the one the store was initialised with. Vectors from
	// different models must never be mixed in one store.
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")
)
