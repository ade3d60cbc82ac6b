package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/recall-kb/recall-cli/internal/adapters/driven/config/file"
	"github.com/recall-kb/recall-cli/internal/adapters/driven/embedding/ollama"
	"github.com/recall-kb/recall-cli/internal/adapters/driven/embedding/openai"
	"github.com/recall-kb/recall-cli/internal/adapters/driven/llm/anthropic"
	"github.com/recall-kb/recall-cli/internal/adapters/driven/storage/sqlite"
	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/core/ports/driven"
	"github.com/recall-kb/recall-cli/internal/core/ports/driving"
	"github.com/recall-kb/recall-cli/internal/core/services"
	"github.com/recall-kb/recall-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services used by the commands. Wired lazily by ensureServices so
// commands like version never touch the data directory; tests inject
// their own implementations.
var (
	contentStore  driven.ContentStore
	ingestService driving.IngestService
	queryService  driving.QueryService
	activePolicy  domain.ChunkPolicy
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Personal knowledge base with hybrid search",
	Long: `recall ingests your writing (blog posts, notes, transcripts) into a
local knowledge base and retrieves it with combined keyword and
semantic search. An optional LLM turns retrieved passages into
grounded answers.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if contentStore != nil {
			_ = contentStore.Close()
		}
	}()
	return rootCmd.Execute()
}

// ensureServices wires the real adapters on first use.
func ensureServices(ctx context.Context) error {
	if ingestService != nil && queryService != nil {
		return nil
	}

	cfg, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	policy, err := configfile.ChunkPolicy(cfg)
	if err != nil {
		return err
	}
	activePolicy = policy

	store, err := sqlite.NewStore(os.Getenv("RECALL_DATA_DIR"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.SyncSources(ctx, policy); err != nil {
		_ = store.Close()
		return fmt.Errorf("sync sources: %w", err)
	}
	contentStore = store

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	logger.Debug("Embedding backend: %s (%d dimensions)", embedder.ModelName(), embedder.Dimensions())

	llm := buildLLM(cfg)

	ingestOpts := []services.IngestOption{}
	if overlap := cfg.GetInt("ingest.overlap"); overlap > 0 {
		ingestOpts = append(ingestOpts, services.WithOverlap(overlap))
	}
	if limit := cfg.GetFloat("ingest.rate_limit"); limit > 0 {
		ingestOpts = append(ingestOpts, services.WithRateLimit(limit))
	}

	ingestService = services.NewIngestService(store, embedder, policy, ingestOpts...)
	queryService = services.NewQueryService(store, embedder, llm)
	return nil
}

// buildEmbedder selects the embedding backend. The environment wins
// over the config file so one-off runs can switch backends.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	backend := os.Getenv("RECALL_EMBEDDING_BACKEND")
	if backend == "" {
		backend = cfg.GetString("embedding.backend")
	}

	switch backend {
	case "openai":
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
	case "", "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    os.Getenv("OLLAMA_HOST"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding backend %q", domain.ErrInvalidInput, backend)
	}
}

// buildLLM returns nil when no API key is configured; the ai command
// reports the missing key instead of failing at startup.
func buildLLM(cfg driven.ConfigStore) driven.LLMService {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil
	}

	llm, err := anthropic.NewLLMService(anthropic.Config{
		APIKey: apiKey,
		Model:  cfg.GetString("llm.model"),
	})
	if err != nil {
		logger.Warn("llm disabled: %v", err)
		return nil
	}
	return llm
}
