package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List source kinds and their contents",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	counts, err := contentStore.CountItems(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}

	policy := activePolicy
	if policy == nil {
		policy = domain.DefaultChunkPolicy()
	}

	cmd.Printf("%-16s %12s %8s\n", "KIND", "CHUNK SIZE", "ITEMS")
	for _, kind := range domain.Kinds() {
		cmd.Printf("%-16s %12d %8d\n", kind, policy.ChunkSize(kind), counts[kind])
	}
	return nil
}
