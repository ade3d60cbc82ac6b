package driving

import (
	"context"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

// IngestService converts documents into stored content items with
// embedded chunks.
type IngestService interface {
	// IngestFile loads one front-matter document and indexes it under
	// the given source kind, returning the new content item's ID.
	IngestFile(ctx context.Context, path string, kind domain.SourceKind) (string, error)

	// IngestText indexes already-loaded content. Meta is merged verbatim
	// except date values, which are normalised to RFC 3339 strings.
	IngestText(ctx context.Context, kind domain.SourceKind, meta map[string]any, content string) (string, error)

	// IngestDir ingests every regular file in dir, one at a time in name
	// order. Per-document failures are logged and skipped; the batch
	// continues. Returns the number of documents ingested and skipped.
	IngestDir(ctx context.Context, dir string, kind domain.SourceKind) (ingested, failed int, err error)
}
