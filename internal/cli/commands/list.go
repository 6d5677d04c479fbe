package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/cli/output"
	"github.com/leapstack-labs/leapunits/pkg/definition"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Filter string
}

// DefinitionInfo describes one definition in list output.
type DefinitionInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Symbol     string   `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Aliases    []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Definition string   `json:"definition" yaml:"definition"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list [units|prefixes|dimensions]",
		Short: "List defined units, prefixes or dimensions",
		Long: `List the definitions of the registry.

Units are listed by default. Prefixed forms of units are only listed once
they have been used.`,
		Example: `  leapunits list
  leapunits list prefixes
  leapunits list units --filter meter -o json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"units", "prefixes", "dimensions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "units"
			if len(args) > 0 {
				kind = args[0]
			}
			return runList(cmd, kind, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "Only list names, symbols or aliases containing this text")

	return cmd
}

func runList(cmd *cobra.Command, kind string, opts *ListOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	defs, title, err := definitionsOf(cmdCtx.Registry, kind)
	if err != nil {
		return err
	}

	infos := make([]DefinitionInfo, 0, len(defs))
	for _, d := range defs {
		info := DefinitionInfo{Name: d.Name(), Aliases: d.Aliases(), Definition: d.String()}
		if d.HasSymbol() {
			info.Symbol = d.Symbol()
		}
		if opts.Filter != "" && !matchesFilter(info, opts.Filter) {
			continue
		}
		infos = append(infos, info)
	}

	r := cmdCtx.Renderer
	if handled, err := r.Data(infos); handled {
		return err
	}
	return listTable(r, title, infos)
}

// definitionsOf returns the definitions of one kind and a display title.
func definitionsOf(reg *registry.Registry, kind string) ([]definition.Definition, string, error) {
	var defs []definition.Definition
	switch kind {
	case "unit", "units":
		for _, u := range reg.Units() {
			defs = append(defs, u)
		}
		return defs, "Units", nil
	case "prefix", "prefixes":
		for _, p := range reg.Prefixes() {
			defs = append(defs, p)
		}
		return defs, "Prefixes", nil
	case "dimension", "dimensions":
		for _, d := range reg.Dimensions() {
			defs = append(defs, d)
		}
		return defs, "Dimensions", nil
	}
	return nil, "", fmt.Errorf("unknown kind %q (want units, prefixes or dimensions)", kind)
}

func matchesFilter(info DefinitionInfo, filter string) bool {
	filter = strings.ToLower(filter)
	if strings.Contains(strings.ToLower(info.Name), filter) ||
		strings.Contains(strings.ToLower(info.Symbol), filter) {
		return true
	}
	for _, a := range info.Aliases {
		if strings.Contains(strings.ToLower(a), filter) {
			return true
		}
	}
	return false
}

func listTable(r *output.Renderer, title string, infos []DefinitionInfo) error {
	r.Header(1, fmt.Sprintf("%s (%d total)", title, len(infos)))
	if len(infos) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, info.Symbol, strings.Join(info.Aliases, ", "), info.Definition})
	}
	r.Table([]string{"Name", "Symbol", "Aliases", "Definition"}, rows)
	return nil
}
