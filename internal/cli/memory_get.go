package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runMemoryGet,
	}

	memoryCmd.AddCommand(cmd)
}

func runMemoryGet(cmd *cobra.Command, args []string) {
	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	mem, err := m.Get(args[0])
	if err != nil {
		exitErr("get", err)
	}
	emit(mem)
}
