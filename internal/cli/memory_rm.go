package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete memories permanently",
		Args:  cobra.MinimumNArgs(1),
		Run:   runMemoryRm,
	}

	memoryCmd.AddCommand(cmd)
}

func runMemoryRm(cmd *cobra.Command, args []string) {
	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	for _, id := range args {
		if err := m.DeleteMemory(cmd.Context(), id); err != nil {
			exitErr("rm "+id, err)
		}
	}
	emit(map[string]any{"ok": true, "deleted": args})
}
