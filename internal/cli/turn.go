package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/model"
)

func init() {
	turnCmd := &cobra.Command{
		Use:   "turn [content]",
		Short: "Append a turn to the session transcript",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTurn,
	}
	turnCmd.Flags().StringP("role", "r", model.RoleUser, "Turn role: user, assistant or note")

	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent transcript turns",
		Run:   runRecent,
	}
	recentCmd.Flags().Int("days", 1, "Calendar days to include")
	recentCmd.Flags().IntP("limit", "l", 50, "Max turns")

	RootCmd.AddCommand(turnCmd, recentCmd)
}

func runTurn(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	content := strings.Join(args, " ")

	e, closeFn := open()
	defer closeFn()

	res, err := e.LogTurn(cmd.Context(), role, content)
	if err != nil {
		exitErr("turn", err)
	}
	printJSON(cmd, res)
}

func runRecent(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")
	limit, _ := cmd.Flags().GetInt("limit")

	e, closeFn := open()
	defer closeFn()

	turns, err := e.Session().Recent(cmd.Context(), days, limit)
	if err != nil {
		exitErr("recent", err)
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	printJSON(cmd, turns)
}
