package cli

import (
	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export labels, triggers and memories",
		Long:  "Export the whole store as one document (json, or yaml with -o yaml). Embeddings are not exported.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	dump, err := store.ExportAll(cmd.Context(), s)
	if err != nil {
		exitErr("export", err)
	}
	emit(dump)
}
