package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List long-term memories",
		Run:   runList,
	}

	cmd.Flags().String("contains", "", "Only records whose content contains this text")
	cmd.Flags().String("category", "", "Only records in this category")
	cmd.Flags().IntP("limit", "l", 50, "Max records")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	contains, _ := cmd.Flags().GetString("contains")
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	e, closeFn := open()
	defer closeFn()

	records, err := e.List(cmd.Context(), contains, category, limit)
	if err != nil {
		exitErr("list", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	printJSON(cmd, records)
}
