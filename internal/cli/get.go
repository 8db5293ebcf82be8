package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Retrieve a long-term memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	e, closeFn := open()
	defer closeFn()

	rec, err := e.Get(cmd.Context(), args[0])
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "not found: %s\n", args[0])
		os.Exit(1)
	}
	if err != nil {
		exitErr("get", err)
	}
	printJSON(cmd, rec)
}
