package cli

import (
	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Learn memories from a session",
		Long:  "Ask the model to summarise a session into memories labelled 'reflection'.",
		Run:   runReflect,
	}

	cmd.Flags().String("session", "", "Session id")
	cmd.Flags().String("name", "", "Session name (newest match)")
	cmd.Flags().IntP("last", "n", 0, "Only the last n turns (0 for all)")

	RootCmd.AddCommand(cmd)
}

func runReflect(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("session")
	name, _ := cmd.Flags().GetString("name")
	last, _ := cmd.Flags().GetInt("last")
	ctx := cmd.Context()

	a, err := openAgent(ctx)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	sess, err := a.sessions.Get(ctx, session.Criteria{SessionID: id, SessionName: name})
	if err != nil {
		exitErr("session", err)
	}
	turns := sess.Conversation
	if last > 0 && len(turns) > last {
		turns = turns[len(turns)-last:]
	}

	res, err := a.assistant.Reflect(ctx, turns)
	if err != nil {
		exitErr("reflect", err)
	}
	emit(res)
}
