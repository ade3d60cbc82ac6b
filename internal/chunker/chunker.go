// Package chunker splits document text into retrievable segments.
//
// Text is split recursively on a priority-ordered list of separators,
// sentence terminators before newlines, so that each segment stays under
// the target size. Separators are kept at the end of the preceding
// segment, and consecutive segments overlap by a small window to avoid
// losing context at boundaries.
package chunker

import "strings"

// DefaultChunkSize is the default number of characters per segment.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of overlapping characters
// between consecutive segments.
const DefaultOverlap = 20

// DefaultSeparators are tried in order: sentence terminators first,
// then newline.
var DefaultSeparators = []string{".", "!", "?", "\n"}

// Splitter splits text into segments according to a chunking policy.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the target segment size in characters.
// Zero disables splitting: the whole text becomes a single segment.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size >= 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive segments.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators sets the priority-ordered separator list.
func WithSeparators(separators []string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for new content in each segment.
	if s.chunkSize > 0 && s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// ChunkSize returns the configured target segment size.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the configured overlap window.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split returns the text's segments in original document order.
//
// With a chunk size of zero the whole text is returned as one segment.
// Otherwise every segment is at most chunkSize+overlap characters, and
// each segment after the first starts with the tail of its predecessor.
// Empty input yields one empty segment; callers guard against embedding
// empty text.
func (s *Splitter) Split(text string) []string {
	if s.chunkSize <= 0 {
		return []string{text}
	}

	pieces := s.splitRecursive(text, s.separators)
	return s.merge(pieces)
}

// splitRecursive breaks text into pieces no longer than chunkSize,
// trying each separator in priority order and falling back to a hard
// character split when none apply.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardSplit(text)
	}

	parts := splitAfter(text, separators[0])
	if len(parts) == 1 {
		// Separator absent, try the next one.
		return s.splitRecursive(text, separators[1:])
	}

	var pieces []string
	for _, part := range parts {
		if len(part) <= s.chunkSize {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, s.splitRecursive(part, separators[1:])...)
	}
	return pieces
}

// hardSplit cuts text at fixed chunkSize boundaries. Last resort for
// runs of text containing no separator at all.
func (s *Splitter) hardSplit(text string) []string {
	var pieces []string
	for len(text) > s.chunkSize {
		pieces = append(pieces, text[:s.chunkSize])
		text = text[s.chunkSize:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// merge accumulates pieces into segments up to chunkSize, carrying the
// last overlap characters of each finished segment into the next.
func (s *Splitter) merge(pieces []string) []string {
	var segments []string
	var buf strings.Builder

	for _, piece := range pieces {
		if piece == "" {
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(piece) > s.chunkSize {
			segment := buf.String()
			segments = append(segments, segment)
			buf.Reset()

			// Carry the tail of the finished segment into the next one.
			if s.overlap > 0 {
				tail := segment
				if len(tail) > s.overlap {
					tail = tail[len(tail)-s.overlap:]
				}
				buf.WriteString(tail)
			}
		}

		buf.WriteString(piece)
	}

	if buf.Len() > 0 {
		segments = append(segments, buf.String())
	}

	if len(segments) == 0 {
		// Empty input still yields one (empty) segment.
		segments = []string{""}
	}
	return segments
}

// splitAfter splits text on sep, keeping the separator at the end of
// the preceding piece so sentence-ending punctuation stays attached to
// its sentence.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	// SplitAfter produces a trailing empty part when text ends with sep.
	if n := len(parts); n > 1 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}
