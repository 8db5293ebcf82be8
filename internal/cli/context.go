package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble relevant memories within a token budget",
		Long:  "Search long-term memory and pack the best matches into a token budget (1 token is about 4 characters).",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", 4000, "Token budget")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")

	e, closeFn := open()
	defer closeFn()

	printJSON(cmd, e.Context(cmd.Context(), query, budget))
}
