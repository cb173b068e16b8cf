package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Send one message, or start an interactive chat when no message is given.
Memories whose trigger appears in a message are recalled into the prompt. When a
workflow memory is recalled, the reply is run as a workflow.

Interactive commands: /reflect stores what was learned so far, /exit quits.`,
		Run: runChat,
	}

	cmd.Flags().String("session", "", "Continue the session with this id")
	cmd.Flags().String("name", "", "Continue the newest session with this name, or start one")
	cmd.Flags().Bool("reflect", false, "Reflect on the conversation when the chat ends")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	id, _ := cmd.Flags().GetString("session")
	name, _ := cmd.Flags().GetString("name")
	reflectAtEnd, _ := cmd.Flags().GetBool("reflect")
	ctx := cmd.Context()

	a, err := openAgent(ctx)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.useSession(ctx, id, name); err != nil {
		exitErr("session", err)
	}

	if len(args) > 0 {
		res, err := a.assistant.Turn(ctx, strings.Join(args, " "))
		if err != nil {
			exitErr("chat", err)
		}
		emit(res)
		return
	}

	out := cmd.OutOrStdout()
	sess := a.assistant.Session()
	fmt.Fprintf(os.Stderr, "session %s (/exit to quit)\n", sess.SessionID)
	start := len(sess.Conversation)
	for {
		fmt.Fprint(os.Stderr, "> ")
		line, err := stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			exitErr("read stdin", err)
		}
		input := strings.TrimSpace(line)
		switch {
		case input == "/exit":
			err = io.EOF
		case input == "/reflect":
			reflectOn(cmd, a, start)
			start = len(a.assistant.Session().Conversation)
		case input != "":
			res, terr := a.assistant.Turn(ctx, input)
			if terr != nil {
				logger.Warn("turn failed", zap.Error(terr))
				fmt.Fprintf(os.Stderr, "error: %v\n", terr)
			}
			if res != nil {
				fmt.Fprintln(out, res.Reply)
				if res.Workflow != nil {
					fmt.Fprintf(out, "[workflow %s] %v\n", res.WorkflowName, res.Workflow.Result)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if reflectAtEnd && len(a.assistant.Session().Conversation) > start {
		reflectOn(cmd, a, start)
	}
}

// reflectOn reflects on the active session's turns from index start onwards.
func reflectOn(cmd *cobra.Command, a *agent, start int) {
	turns := a.assistant.Session().Conversation[start:]
	if len(turns) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to reflect on")
		return
	}
	res, err := a.assistant.Reflect(cmd.Context(), turns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reflect: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "learned %d memories\n", len(res.Added))
}
