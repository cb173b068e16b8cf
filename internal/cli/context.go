package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/chat"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Show the memories a message would recall",
		Long:  "Match triggers in the message, then greedily pack their memories into a token budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", 0, "Max tokens (default: chat.context_budget)")
	cmd.Flags().Bool("prompt", false, "Print the full system prompt instead")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	showPrompt, _ := cmd.Flags().GetBool("prompt")
	query := strings.Join(args, " ")
	if budget <= 0 {
		budget = cfg.Chat.ContextBudget
	}

	m, closeMem, err := openManager(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer closeMem()

	a := chat.New(m, nil, chat.WithBudget(budget), chat.WithLogger(logger.Named("chat")))
	if showPrompt {
		prompt, workflowName, err := a.BuildSystemPrompt(cmd.Context(), query, nil)
		if err != nil {
			exitErr("context", err)
		}
		emit(map[string]any{"prompt": prompt, "workflow_name": workflowName})
		return
	}

	result, err := a.Context(cmd.Context(), query)
	if err != nil {
		exitErr("context", err)
	}
	emit(result)
}
