package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a workflow",
		Long: "Run the first ```json workflow block found in a file or stdin. " +
			"Steps run in order; STEPn parameters refer to earlier results.",
		Args: cobra.MaximumNArgs(1),
		Run:  runWorkflow,
	}

	cmd.Flags().String("session", "", "Session llm_call steps write to (default: a new session)")
	cmd.Flags().Bool("abilities", false, "List the registered abilities and exit")

	RootCmd.AddCommand(cmd)
}

func runWorkflow(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("session")
	list, _ := cmd.Flags().GetBool("abilities")
	ctx := cmd.Context()

	a, err := openAgent(ctx)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if list {
		emit(a.registry.List())
		return
	}

	var text string
	if len(args) > 0 {
		b, err := os.ReadFile(args[0])
		if err != nil {
			exitErr("read workflow", err)
		}
		text = string(b)
	} else {
		text = readInput(nil)
	}
	if strings.TrimSpace(text) == "" {
		exitErr("run", fmt.Errorf("workflow is required (file or stdin)"))
	}

	if err := a.useSession(ctx, id, ""); err != nil {
		exitErr("session", err)
	}
	out, err := a.engine.RunText(ctx, text, nil)
	if err != nil {
		exitErr("run", err)
	}
	emit(out)
}
