package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export long-term memories to stdout",
		Run:   runExport,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format: json or markdown")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")

	e, closeFn := open()
	defer closeFn()

	var (
		n   int
		err error
	)
	switch format {
	case "json":
		n, err = e.ExportJSON(cmd.Context(), cmd.OutOrStdout())
	case "markdown", "md":
		n, err = e.ExportMarkdown(cmd.Context(), cmd.OutOrStdout())
	default:
		exitErr("export", fmt.Errorf("unknown format %q", format))
	}
	if err != nil {
		exitErr("export", err)
	}
	fmt.Fprintf(os.Stderr, "exported %d records\n", n)
}
