package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/recall-kb/recall-cli/internal/chunker"
	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/core/ports/driven"
	"github.com/recall-kb/recall-cli/internal/core/ports/driving"
	"github.com/recall-kb/recall-cli/internal/frontmatter"
	"github.com/recall-kb/recall-cli/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// embedRetries bounds retry attempts for transient embedding failures.
const embedRetries = 2

// IngestService converts documents into stored content items.
type IngestService struct {
	store    driven.ContentStore
	embedder driven.EmbeddingService
	policy   domain.ChunkPolicy
	overlap  int

	// limiter paces embedding calls during bulk imports so a local
	// backend is not flooded. Nil disables pacing.
	limiter *rate.Limiter
}

// IngestOption configures the ingest service.
type IngestOption func(*IngestService)

// WithOverlap sets the chunk overlap window in characters.
func WithOverlap(overlap int) IngestOption {
	return func(s *IngestService) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithRateLimit paces embedding batches to n calls per second.
func WithRateLimit(n float64) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// NewIngestService creates a new ingest service.
// The policy must already be validated; see domain.ChunkPolicy.Validate.
func NewIngestService(
	store driven.ContentStore,
	embedder driven.EmbeddingService,
	policy domain.ChunkPolicy,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		store:    store,
		embedder: embedder,
		policy:   policy,
		overlap:  chunker.DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestFile loads one front-matter document and indexes it.
func (s *IngestService) IngestFile(ctx context.Context, path string, kind domain.SourceKind) (string, error) {
	doc, err := frontmatter.Load(path)
	if err != nil {
		return "", err
	}

	meta := doc.Meta
	if _, ok := meta["title"]; !ok {
		// Untitled documents fall back to their file name so search
		// results always have something to display.
		meta["title"] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return s.IngestText(ctx, kind, meta, doc.Content)
}

// IngestText chunks, embeds, and stores already-loaded content.
//
// Embedding happens before any row is written, and the store inserts
// the item and all chunk rows in one transaction, so a failure at any
// point leaves no partial document behind.
func (s *IngestService) IngestText(
	ctx context.Context, kind domain.SourceKind, meta map[string]any, content string,
) (string, error) {
	logger.Section("Ingest")

	chunkSize := s.policy.ChunkSize(kind)
	logger.Debug("Kind: %s, chunk size: %d", kind, chunkSize)

	splitter := chunker.New(
		chunker.WithChunkSize(chunkSize),
		chunker.WithOverlap(s.overlap),
	)

	segments := splitter.Split(content)

	// Never embed empty text.
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg) != "" {
			texts = append(texts, seg)
		}
	}
	logger.Debug("Segments: %d (%d non-empty)", len(segments), len(texts))

	if err := s.checkEmbeddingModel(ctx); err != nil {
		return "", err
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return "", err
	}

	chunks := make([]domain.ChunkInput, len(texts))
	for i := range texts {
		chunks[i] = domain.ChunkInput{Snippet: texts[i], Embedding: vectors[i]}
	}

	id, err := s.store.CreateItem(ctx, kind, meta, chunks)
	if err != nil {
		return "", fmt.Errorf("create content item: %w", err)
	}

	logger.Info("Ingested item %s with %d chunks", id, len(chunks))
	return id, nil
}

// IngestDir ingests every regular file in dir, sequentially in name
// order. Failed documents are logged and skipped; the batch continues.
func (s *IngestService) IngestDir(
	ctx context.Context, dir string, kind domain.SourceKind,
) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", domain.ErrDocumentRead, dir, err)
	}

	var ingested, failed int
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if _, err := s.IngestFile(ctx, path, kind); err != nil {
			logger.Warn("skipping %s: %v", path, err)
			failed++
			continue
		}
		ingested++
	}

	logger.Info("Bulk import done: %d ingested, %d failed", ingested, failed)
	return ingested, failed, nil
}

// checkEmbeddingModel pins the store to one embedding model on first
// ingest and rejects mismatching models afterwards. Vectors from
// different models or dimensions must never be mixed in one store.
func (s *IngestService) checkEmbeddingModel(ctx context.Context) error {
	model, dims, ok, err := s.store.EmbeddingInfo(ctx)
	if err != nil {
		return fmt.Errorf("read embedding info: %w", err)
	}

	if !ok {
		return s.store.SetEmbeddingInfo(ctx, s.embedder.ModelName(), s.embedder.Dimensions())
	}

	if model != s.embedder.ModelName() || dims != s.embedder.Dimensions() {
		return fmt.Errorf("%w: store has %s/%d, embedder is %s/%d",
			domain.ErrEmbeddingMismatch, model, dims, s.embedder.ModelName(), s.embedder.Dimensions())
	}
	return nil
}

// embedAll embeds all segments in one batch call, with bounded retry
// on transient backend failures.
func (s *IngestService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var vectors [][]float32
	backoff := retry.WithMaxRetries(embedRetries, retry.NewFibonacci(200*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = s.embedder.EmbedBatch(ctx, texts)
		if embedErr == nil {
			return nil
		}
		// Only backend-unreachable failures are worth retrying.
		if errors.Is(embedErr, domain.ErrEmbeddingUnavailable) {
			return retry.RetryableError(embedErr)
		}
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d segments",
			domain.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}
