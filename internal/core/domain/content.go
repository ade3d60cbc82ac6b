package domain

import "time"

// ContentItem is the persisted record for one ingested document.
// Items are created once and never mutated by this pipeline.
type ContentItem struct {
	// ID is the unique identifier, assigned by the store on creation.
	ID string

	// Kind is the source kind the item was ingested under.
	Kind SourceKind

	// Meta contains arbitrary front-matter key/value pairs.
	// Date values are normalised to RFC 3339 strings before storage.
	Meta map[string]any

	// CreatedAt is when the item was ingested.
	CreatedAt time.Time
}

// Title returns the "title" metadata value, or empty when absent.
func (c *ContentItem) Title() string {
	if s, ok := c.Meta["title"].(string); ok {
		return s
	}
	return ""
}

// Chunk is one retrievable unit of text belonging to a content item.
// Chunks are cascade-deleted with their item.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// ContentItemID links to the owning ContentItem.
	ContentItemID string

	// Position is the ordinal position within the item.
	// Concatenating chunks by position reconstructs the original
	// content, modulo the chunking overlap.
	Position int

	// Snippet is the text content of this chunk.
	Snippet string

	// Embedding is the vector representation for similarity search.
	// All embeddings in one store come from the same model.
	Embedding []float32
}

// ChunkInput is the (snippet, vector) pair handed to the store when
// creating an item. IDs and positions are assigned at insert time.
type ChunkInput struct {
	Snippet   string
	Embedding []float32
}

// NormalizeMeta returns a copy of meta with every time.Time value
// converted to an RFC 3339 string, recursively through nested maps and
// slices. Front-matter parsers produce time.Time for date fields; the
// store keeps metadata as plain JSON.
func NormalizeMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = normalizeMetaValue(v)
	}
	return out
}

func normalizeMetaValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case map[string]any:
		return NormalizeMeta(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeMetaValue(e)
		}
		return out
	default:
		return v
	}
}
