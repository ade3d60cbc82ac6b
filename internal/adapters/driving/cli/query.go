package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recall-kb/recall-cli/internal/core/domain"
)

var (
	queryLimit         int
	queryContentWeight float64
	queryVectorWeight  float64
	queryJSON          bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the knowledge base",
	Long: `Performs hybrid search over all ingested content. Keyword relevance
and vector similarity are combined with configurable weights.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	queryCmd.Flags().Float64Var(&queryContentWeight, "content-weight", domain.DefaultContentWeight, "weight of keyword relevance")
	queryCmd.Flags().Float64Var(&queryVectorWeight, "vector-weight", domain.DefaultVectorWeight, "weight of vector similarity")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	opts := domain.SearchOptions{
		ContentWeight: queryContentWeight,
		VectorWeight:  queryVectorWeight,
		Limit:         queryLimit,
	}

	results, err := queryService.Search(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}
	return outputQueryText(cmd, results)
}

type queryResultJSON struct {
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

func outputQueryJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]queryResultJSON, len(results))
	for i, r := range results {
		out[i] = queryResultJSON{
			Title:     r.Title,
			Snippet:   r.Snippet,
			Score:     r.Score,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryText(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No content found.")
		return nil
	}

	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, r.Score)
		cmd.Printf("      %s\n", strings.TrimSpace(r.Snippet))
		cmd.Println()
	}
	return nil
}
