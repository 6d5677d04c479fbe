package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/state"
	"github.com/leapstack-labs/leapunits/pkg/definition"
)

// StoredDefinition is a saved definition in command output.
type StoredDefinition struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
	Line string `json:"line" yaml:"line"`
}

// NewDefineCommand creates the define command and its subcommands.
func NewDefineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "define",
		Short: "Manage saved definitions",
		Long: `Manage definitions saved in the state database. Saved definitions are
added to the registry of every command, after the definitions files.`,
	}

	cmd.AddCommand(newDefineAddCommand())
	cmd.AddCommand(newDefineListCommand())
	cmd.AddCommand(newDefineRemoveCommand())
	return cmd
}

func newDefineAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <definition>",
		Short: "Save a definition",
		Example: `  leapunits define add "smoot = 1.7018 * meter"
  leapunits define add "@alias smoot = smoots"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			line := strings.TrimSpace(strings.Join(args, " "))
			def, err := definition.FromString(line)
			if err != nil {
				return err
			}
			// check it against the registry before saving
			if err := cmdCtx.Registry.Define(def); err != nil {
				return err
			}

			saved := &state.Definition{Name: def.Name(), Kind: def.Kind().String(), Line: line}
			if err := cmdCtx.Store.SaveDefinition(cmd.Context(), saved); err != nil {
				return fmt.Errorf("failed to save definition: %w", err)
			}

			r := cmdCtx.Renderer
			if handled, err := r.Data(StoredDefinition{Name: saved.Name, Kind: saved.Kind, Line: saved.Line}); handled {
				return err
			}
			r.Success(fmt.Sprintf("saved %s %s", saved.Kind, saved.Name))
			return nil
		},
	}
}

func newDefineListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContextWithoutRegistry(cmd)
			if err != nil {
				return err
			}
			store, err := state.OpenStore(cmdCtx.Cfg.StatePath)
			if err != nil {
				return fmt.Errorf("failed to open state store: %w", err)
			}
			defer func() { _ = store.Close() }()

			defs, err := store.ListDefinitions(cmd.Context())
			if err != nil {
				return err
			}

			out := make([]StoredDefinition, 0, len(defs))
			for _, d := range defs {
				out = append(out, StoredDefinition{Name: d.Name, Kind: d.Kind, Line: d.Line})
			}

			r := cmdCtx.Renderer
			if handled, err := r.Data(out); handled {
				return err
			}
			if len(out) == 0 {
				r.Println("No saved definitions")
				return nil
			}
			rows := make([][]string, 0, len(out))
			for _, d := range out {
				rows = append(rows, []string{d.Name, d.Kind, d.Line})
			}
			r.Table([]string{"Name", "Kind", "Definition"}, rows)
			return nil
		},
	}
}

func newDefineRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a saved definition",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContextWithoutRegistry(cmd)
			if err != nil {
				return err
			}
			store, err := state.OpenStore(cmdCtx.Cfg.StatePath)
			if err != nil {
				return fmt.Errorf("failed to open state store: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteDefinition(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmdCtx.Renderer.Success("removed " + args[0])
			return nil
		},
	}
}
