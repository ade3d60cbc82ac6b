// Package domain defines the core business entities for Recall.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceKind: A closed enum of ingestable content kinds
//   - ChunkPolicy: The kind to chunk-size configuration table
//   - ContentItem: One ingested document and its metadata
//   - Chunk: A retrievable text segment with its embedding
//   - SearchResult: A ranked hybrid-search hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
