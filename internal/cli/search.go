package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search long-term memory",
		Long:  "Rank long-term memories against a query by vector similarity, keyword overlap, recency and importance.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("top-k", "k", 0, "Max results (default: memory.max_results)")
	cmd.Flags().Float64P("min-score", "m", 0, "Minimum score (default: memory.min_score)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top-k")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	query := strings.Join(args, " ")

	e, closeFn := open()
	defer closeFn()

	printJSON(cmd, e.Search(cmd.Context(), query, topK, minScore))
}
