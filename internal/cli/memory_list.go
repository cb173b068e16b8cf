package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Run:   runMemoryList,
	}

	cmd.Flags().IntP("limit", "n", 20, "Max results (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output ids")

	memoryCmd.AddCommand(cmd)
}

func runMemoryList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	memories := m.Memories()
	slices.Reverse(memories)
	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}

	if idsOnly {
		for _, mem := range memories {
			fmt.Fprintln(cmd.OutOrStdout(), mem.ID)
		}
		return
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	emit(memories)
}
