package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

var aiSystemPrompt string

var aiCmd = &cobra.Command{
	Use:   "ai [question]",
	Short: "Ask a question answered from your own content",
	Long: `Retrieves the most relevant passages for the question and streams an
LLM answer grounded in them. Requires ANTHROPIC_API_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: runAI,
}

func init() {
	aiCmd.Flags().StringVar(&aiSystemPrompt, "system", "", "override the system prompt")
	rootCmd.AddCommand(aiCmd)
}

func runAI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	err := queryService.Answer(ctx, args[0], aiSystemPrompt, func(delta string) error {
		cmd.Print(delta)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLLMUnavailable) {
			return fmt.Errorf("ai unavailable (is ANTHROPIC_API_KEY set?): %w", err)
		}
		return fmt.Errorf("ai failed: %w", err)
	}

	cmd.Println()
	return nil
}
