package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Adam-Huang/reflect/internal/memory"
)

// tagKind binds the label and trigger registries to one set of commands.
type tagKind struct {
	name   string
	add    func(m *memory.Manager, ctx context.Context, name, desc string) error
	update func(m *memory.Manager, ctx context.Context, old, name string, desc *string) (*memory.CascadeResult, error)
	del    func(m *memory.Manager, ctx context.Context, name string) (*memory.CascadeResult, error)
	list   func(m *memory.Manager) any
}

func init() {
	RootCmd.AddCommand(tagCommand(tagKind{
		name:   "label",
		add:    (*memory.Manager).AddLabel,
		update: (*memory.Manager).UpdateLabel,
		del:    (*memory.Manager).DeleteLabel,
		list:   func(m *memory.Manager) any { return m.LabelInfos() },
	}))
	RootCmd.AddCommand(tagCommand(tagKind{
		name:   "trigger",
		add:    (*memory.Manager).AddTrigger,
		update: (*memory.Manager).UpdateTrigger,
		del:    (*memory.Manager).DeleteTrigger,
		list:   func(m *memory.Manager) any { return m.TriggerInfos() },
	}))
}

func tagCommand(k tagKind) *cobra.Command {
	root := &cobra.Command{
		Use:   k.name,
		Short: "Manage the global " + k.name + " registry",
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a " + k.name,
		Args:  cobra.ExactArgs(1),
		Run: withManager(func(cmd *cobra.Command, m *memory.Manager, args []string) {
			desc, _ := cmd.Flags().GetString("description")
			if err := k.add(m, cmd.Context(), args[0], desc); err != nil {
				exitErr(k.name+" add", err)
			}
			emit(map[string]any{"ok": true, k.name: args[0]})
		}),
	}
	add.Flags().StringP("description", "D", "", "Description")

	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Rename a " + k.name + " or change its description, rewriting every memory that uses it",
		Args:  cobra.ExactArgs(1),
		Run: withManager(func(cmd *cobra.Command, m *memory.Manager, args []string) {
			newName, _ := cmd.Flags().GetString("name")
			var desc *string
			if cmd.Flags().Changed("description") {
				d, _ := cmd.Flags().GetString("description")
				desc = &d
			}
			res, err := k.update(m, cmd.Context(), args[0], newName, desc)
			if err != nil {
				exitErr(k.name+" update", err)
			}
			emit(res)
		}),
	}
	update.Flags().String("name", "", "New name (default: unchanged)")
	update.Flags().StringP("description", "D", "", "New description")

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a " + k.name + " and strip it from every memory",
		Args:  cobra.ExactArgs(1),
		Run: withManager(func(cmd *cobra.Command, m *memory.Manager, args []string) {
			res, err := k.del(m, cmd.Context(), args[0])
			if err != nil {
				exitErr(k.name+" rm", err)
			}
			emit(res)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered " + k.name + "s",
		Run: withManager(func(cmd *cobra.Command, m *memory.Manager, args []string) {
			emit(k.list(m))
		}),
	}

	root.AddCommand(add, update, rm, list)
	return root
}

// withManager opens the memory manager around run.
func withManager(run func(cmd *cobra.Command, m *memory.Manager, args []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		m, closeMem, err := openManager(cmd.Context())
		if err != nil {
			exitErr("open store", err)
		}
		defer closeMem()
		run(cmd, m, args)
	}
}
