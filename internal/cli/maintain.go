package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Extract facts from the session transcript into long-term memory",
		Long: "Extract facts from unprocessed user and note turns. Without --force the sweep only runs " +
			"once memory.process_interval turns are pending. Loaded turns are marked processed even when extraction fails.",
		Run: runSweep,
	}
	sweepCmd.Flags().Bool("force", false, "Sweep regardless of the pending turn count")

	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Coalesce near-duplicate long-term memories",
		Run:   runMerge,
	}

	forgetCmd := &cobra.Command{
		Use:   "forget",
		Short: "Drop stale turns and unimportant, unused memories",
		Run:   runForget,
	}
	forgetCmd.Flags().Int("days", 0, "Retention window in days (default: memory.forget_days)")

	RootCmd.AddCommand(sweepCmd, mergeCmd, forgetCmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	e, closeFn := open()
	defer closeFn()

	printJSON(cmd, e.SweepSessionToLongTerm(cmd.Context(), force))
}

func runMerge(cmd *cobra.Command, args []string) {
	e, closeFn := open()
	defer closeFn()

	report, err := e.MergeSimilar(cmd.Context())
	if err != nil {
		exitErr("merge", err)
	}
	printJSON(cmd, report)
}

func runForget(cmd *cobra.Command, args []string) {
	days, _ := cmd.Flags().GetInt("days")

	e, closeFn := open()
	defer closeFn()

	report, err := e.Forget(cmd.Context(), days)
	if err != nil {
		exitErr("forget", err)
	}
	printJSON(cmd, report)
}
