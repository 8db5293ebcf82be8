package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import long-term memories from a JSON export",
		Long:  "Import records written by 'export --format json'. Reads stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open import file", err)
		}
		defer f.Close()
		r = f
	}

	e, closeFn := open()
	defer closeFn()

	report, err := e.Import(cmd.Context(), r)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(cmd, report)
}
