package cli

import (
	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a memory",
		Long:  "Update the given fields of a memory. An empty --trigger clears it; a new summary is re-embedded.",
		Args:  cobra.ExactArgs(1),
		Run:   runMemoryUpdate,
	}

	cmd.Flags().String("text", "", "New original text")
	cmd.Flags().StringP("summary", "s", "", "New summary")
	cmd.Flags().StringP("labels", "l", "", "Replacement comma-separated labels")
	cmd.Flags().StringP("trigger", "t", "", "New trigger (empty clears)")

	memoryCmd.AddCommand(cmd)
}

func runMemoryUpdate(cmd *cobra.Command, args []string) {
	var p memory.UpdateParams
	if cmd.Flags().Changed("text") {
		v, _ := cmd.Flags().GetString("text")
		p.Text = &v
	}
	if cmd.Flags().Changed("summary") {
		v, _ := cmd.Flags().GetString("summary")
		p.Summary = &v
	}
	if cmd.Flags().Changed("labels") {
		v, _ := cmd.Flags().GetString("labels")
		labels := splitList(v)
		p.Labels = &labels
	}
	if cmd.Flags().Changed("trigger") {
		v, _ := cmd.Flags().GetString("trigger")
		p.Trigger = &v
	}

	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	mem, err := m.UpdateMemory(cmd.Context(), args[0], p)
	if err != nil {
		exitErr("update", err)
	}
	emit(mem)
}
