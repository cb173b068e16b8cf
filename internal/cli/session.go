package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/session"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
	}

	newCmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Start a session",
		Args:  cobra.MaximumNArgs(1),
		Run: withSessions(func(cmd *cobra.Command, s *session.LocalStore, args []string) {
			c := session.Criteria{}
			if len(args) > 0 {
				c.SessionName = args[0]
			}
			sess, err := s.New(cmd.Context(), c)
			if err != nil {
				exitErr("session new", err)
			}
			emit(sess)
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions, newest first",
		Run: withSessions(func(cmd *cobra.Command, s *session.LocalStore, args []string) {
			list, err := s.List(cmd.Context(), time.Now())
			if err != nil {
				exitErr("session list", err)
			}
			emit(list)
		}),
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session",
		Long:  "Print a session by id, or with --name the newest session whose name prefixes the given one.",
		Args:  cobra.MaximumNArgs(1),
		Run: withSessions(func(cmd *cobra.Command, s *session.LocalStore, args []string) {
			name, _ := cmd.Flags().GetString("name")
			c := session.Criteria{SessionName: name}
			if len(args) > 0 {
				c.SessionID = args[0]
			}
			sess, err := s.Get(cmd.Context(), c)
			if err != nil {
				exitErr("session show", err)
			}
			emit(sess)
		}),
	}
	showCmd.Flags().String("name", "", "Look up by session name")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a session (the file is kept, marked deleted)",
		Args:  cobra.ExactArgs(1),
		Run: withSessions(func(cmd *cobra.Command, s *session.LocalStore, args []string) {
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				exitErr("session rm", err)
			}
			emit(map[string]any{"ok": true, "session_id": args[0]})
		}),
	}

	sessionCmd.AddCommand(newCmd, listCmd, showCmd, rmCmd)
	RootCmd.AddCommand(sessionCmd)
}

func withSessions(run func(cmd *cobra.Command, s *session.LocalStore, args []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		s, err := openSessions()
		if err != nil {
			exitErr("open sessions", err)
		}
		run(cmd, s, args)
	}
}
