// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IngestService owns the chunk-embed-store pipeline and its atomicity
// guarantee; QueryService owns query embedding, hybrid retrieval, and
// grounded answer streaming.
package services
