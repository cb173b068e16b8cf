package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/chunker"
	"github.com/Adam-Huang/reflect/internal/memory"
	"github.com/Adam-Huang/reflect/internal/model"
)

var memoryCmd = &cobra.Command{
	Use:     "memory",
	Aliases: []string{"mem"},
	Short:   "Add, search, update and delete memories",
}

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a memory",
		Long:  "Store a memory. Text can be a positional arg or piped via stdin.",
		Run:   runMemoryAdd,
	}

	cmd.Flags().StringP("summary", "s", "", "Summary (default: the text)")
	cmd.Flags().StringP("labels", "l", "", "Comma-separated labels")
	cmd.Flags().StringP("trigger", "t", "", "Trigger word")
	cmd.Flags().Bool("split", false, "Store long markdown text as one memory per section")

	memoryCmd.AddCommand(cmd)
	RootCmd.AddCommand(memoryCmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetString("summary")
	labels, _ := cmd.Flags().GetString("labels")
	trigger, _ := cmd.Flags().GetString("trigger")
	split, _ := cmd.Flags().GetBool("split")

	text := strings.TrimSpace(readInput(args))
	if text == "" {
		exitErr("add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	if split {
		emit(addSections(cmd, m, text, splitList(labels), trigger))
		return
	}

	mem, err := m.AddMemory(cmd.Context(), memory.AddParams{
		Text:    text,
		Summary: summary,
		Labels:  splitList(labels),
		Trigger: trigger,
	})
	if err != nil {
		exitErr("add", err)
	}
	emit(mem)
}

// addSections stores each markdown section of text as its own memory.
func addSections(cmd *cobra.Command, m *memory.Manager, text string, labels []string, trigger string) []model.Memory {
	chunks := chunker.Markdown(text, cfg.Chat.SplitSize)
	out := make([]model.Memory, 0, len(chunks))
	for i, c := range chunks {
		mem, err := m.AddMemory(cmd.Context(), memory.AddParams{
			Text:    c.Text,
			Labels:  labels,
			Trigger: trigger,
			Metadata: map[string]any{
				"part":  i + 1,
				"parts": len(chunks),
				"lines": fmt.Sprintf("%d-%d", c.StartLine, c.EndLine),
			},
		})
		if err != nil {
			exitErr(fmt.Sprintf("add section %d", i+1), err)
		}
		out = append(out, *mem)
	}
	return out
}
