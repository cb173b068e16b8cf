package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/memory"
	"github.com/Adam-Huang/reflect/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		Long: `Search memories in one of four modes:
  vector   nearest summaries by embedding (needs an embedding provider)
  keyword  substring of text or summary, newest first
  label    memories carrying any of --labels, newest first
  trigger  every memory whose trigger equals the query, newest first`,
		Run: runMemorySearch,
	}

	cmd.Flags().StringP("mode", "m", memory.ModeKeyword, "Search mode: vector, keyword, label, trigger")
	cmd.Flags().StringP("labels", "l", "", "Comma-separated labels (label mode)")
	cmd.Flags().IntP("top", "k", memory.DefaultK, "Max results (ignored in trigger mode)")
	cmd.Flags().Bool("exact", false, "Case-sensitive keyword match")

	memoryCmd.AddCommand(cmd)
}

func runMemorySearch(cmd *cobra.Command, args []string) {
	mode, _ := cmd.Flags().GetString("mode")
	labels, _ := cmd.Flags().GetString("labels")
	k, _ := cmd.Flags().GetInt("top")
	exact, _ := cmd.Flags().GetBool("exact")

	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	results, err := m.SearchMemory(cmd.Context(), memory.SearchParams{
		Query:      strings.Join(args, " "),
		Labels:     splitList(labels),
		K:          k,
		Mode:       mode,
		ExactMatch: exact,
	})
	if err != nil {
		exitErr("search", err)
	}
	if results == nil {
		results = []model.Memory{}
	}
	emit(results)
}
