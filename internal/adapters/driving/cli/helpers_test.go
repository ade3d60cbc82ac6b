package cli

import (
	"context"

	"github.com/recall-kb/recall-cli/internal/adapters/driven/storage/memory"
	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/core/services"
)

// fakeEmbedder is a deterministic in-process embedding backend.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (f fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1, 0, 0, 0}
	}
	return result, nil
}

func (fakeEmbedder) Dimensions() int              { return 4 }
func (fakeEmbedder) ModelName() string            { return "fake-embed" }
func (fakeEmbedder) Ping(_ context.Context) error { return nil }
func (fakeEmbedder) Close() error                 { return nil }

// setupTestServices wires the commands to an in-memory store so tests
// never touch the real data directory. Returns a cleanup function.
func setupTestServices() func() {
	store := memory.NewContentStore()
	embedder := fakeEmbedder{}
	policy := domain.DefaultChunkPolicy()

	contentStore = store
	activePolicy = policy
	ingestService = services.NewIngestService(store, embedder, policy)
	queryService = services.NewQueryService(store, embedder, nil)

	return func() {
		contentStore = nil
		activePolicy = nil
		ingestService = nil
		queryService = nil
	}
}

// seedTestContent ingests one document through the wired test services.
func seedTestContent(title, content string) error {
	_, err := ingestService.IngestText(context.Background(), domain.SourceNotes,
		map[string]any{"title": title}, content)
	return err
}
