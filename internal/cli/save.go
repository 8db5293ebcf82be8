package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [text]",
		Short: "Save a memory",
		Long: "Save text to long-term memory, where it is deduplicated and merged with similar records, " +
			"or to short-term memory, where it is appended to the session transcript as a note.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSave,
	}

	cmd.Flags().StringP("type", "t", "long", "Memory tier: long or short")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("type")
	text := strings.Join(args, " ")

	e, closeFn := open()
	defer closeFn()

	res, err := e.Save(cmd.Context(), text, model.Tier(tier))
	if err != nil {
		exitErr("save", err)
	}
	printJSON(cmd, res)
}
