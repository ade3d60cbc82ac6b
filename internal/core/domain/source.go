package domain

import "fmt"

// SourceKind identifies the kind of content being ingested.
// It is a closed set: every kind is known at compile time and the
// chunking policy table must cover all of them.
type SourceKind string

// Known source kinds.
const (
	SourceBlog           SourceKind = "blog"
	SourceMicroblog      SourceKind = "microblog"
	SourceNotes          SourceKind = "notes"
	SourceConduit        SourceKind = "conduit"
	SourceYouTube        SourceKind = "youtube"
	SourceConferenceTalk SourceKind = "conference-talk"
)

// Kinds returns all known source kinds in a stable order.
func Kinds() []SourceKind {
	return []SourceKind{
		SourceBlog,
		SourceMicroblog,
		SourceNotes,
		SourceConduit,
		SourceYouTube,
		SourceConferenceTalk,
	}
}

// ParseSourceKind validates a user-supplied kind string.
// Unknown kinds are rejected before any I/O happens.
func ParseSourceKind(s string) (SourceKind, error) {
	kind := SourceKind(s)
	for _, k := range Kinds() {
		if kind == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
}

// ChunkPolicy maps each source kind to its target chunk size in characters.
// A size of zero means the document is stored as a single retrievable unit,
// used for inherently short content where splitting would destroy meaning.
type ChunkPolicy map[SourceKind]int

// DefaultChunkPolicy returns the built-in kind to chunk-size table.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{
		SourceBlog:           1000,
		SourceMicroblog:      0,
		SourceNotes:          800,
		SourceConduit:        1000,
		SourceYouTube:        1200,
		SourceConferenceTalk: 1200,
	}
}

// Validate checks the policy covers every known kind with a non-negative size.
// Called once at startup so a misconfigured table fails fast.
func (p ChunkPolicy) Validate() error {
	for _, kind := range Kinds() {
		size, ok := p[kind]
		if !ok {
			return fmt.Errorf("%w: chunk policy missing entry for %q", ErrInvalidInput, kind)
		}
		if size < 0 {
			return fmt.Errorf("%w: chunk size for %q must be >= 0, got %d", ErrInvalidInput, kind, size)
		}
	}
	return nil
}

// ChunkSize returns the target chunk size for a kind.
func (p ChunkPolicy) ChunkSize(kind SourceKind) int {
	return p[kind]
}
