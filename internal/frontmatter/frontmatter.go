// Package frontmatter loads documents with a YAML front-matter header.
//
// A document is a text file beginning with a metadata block delimited by
// "---" lines, followed by the body text. Metadata is an arbitrary
// key/value mapping merged verbatim, except date values which callers
// normalise to RFC 3339 strings before storage.
package frontmatter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

// delimiter marks the start and end of the front-matter block.
const delimiter = "---"

// Document is one loaded front-matter file.
type Document struct {
	// Meta contains the parsed front-matter mapping. Empty but non-nil
	// for documents without a front-matter block.
	Meta map[string]any

	// Content is the body text following the front-matter block.
	Content string
}

// Title returns the "title" metadata value, or empty when absent.
func (d *Document) Title() string {
	if s, ok := d.Meta["title"].(string); ok {
		return s
	}
	return ""
}

// Load reads and parses a front-matter document from disk.
// Missing files and malformed front matter fail with ErrDocumentRead
// so bulk loaders can skip the document and continue.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDocumentRead, path, err)
	}

	doc, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDocumentRead, path, err)
	}
	return doc, nil
}

// Parse splits raw text into front matter and body.
// Text without a leading delimiter is treated as all body.
func Parse(raw string) (*Document, error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")

	if !strings.HasPrefix(normalized, delimiter+"\n") {
		return &Document{
			Meta:    map[string]any{},
			Content: strings.TrimSpace(normalized),
		}, nil
	}

	rest := strings.TrimPrefix(normalized, delimiter+"\n")
	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return nil, fmt.Errorf("front matter not terminated")
	}

	header := rest[:end]
	body := rest[end+len("\n"+delimiter):]
	body = strings.TrimPrefix(body, "\n")

	meta := map[string]any{}
	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
			return nil, fmt.Errorf("parsing front matter: %w", err)
		}
	}

	return &Document{
		Meta:    meta,
		Content: strings.TrimSpace(body),
	}, nil
}
