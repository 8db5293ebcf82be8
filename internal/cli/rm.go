package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	rmCmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a long-term memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty a memory tier",
		Run:   runClear,
	}
	clearCmd.Flags().StringP("type", "t", "", "Tier to clear: long, short, cache or all (required)")
	clearCmd.MarkFlagRequired("type")

	RootCmd.AddCommand(rmCmd, clearCmd)
}

func runRm(cmd *cobra.Command, args []string) {
	e, closeFn := open()
	defer closeFn()

	ok := e.Delete(cmd.Context(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":%t,"id":%q}`+"\n", ok, args[0])
}

func runClear(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("type")

	e, closeFn := open()
	defer closeFn()

	report, err := e.Clear(cmd.Context(), model.Tier(tier))
	if err != nil {
		exitErr("clear", err)
	}
	printJSON(cmd, report)
}
