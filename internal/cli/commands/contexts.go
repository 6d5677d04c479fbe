package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// ContextInfo describes one context in contexts output.
type ContextInfo struct {
	Name     string             `json:"name" yaml:"name"`
	Aliases  []string           `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Defaults map[string]float64 `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Active   bool               `json:"active" yaml:"active"`
}

// NewContextsCommand creates the contexts command.
func NewContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "List the available contexts",
		Long: `List the contexts of the registry with their aliases and default
parameters. Contexts enabled through the configuration or --context are
marked active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg := cmdCtx.Registry
			active := make(map[string]bool)
			for _, name := range reg.ActiveContexts() {
				active[name] = true
			}

			infos := make([]ContextInfo, 0)
			for _, name := range reg.Contexts() {
				c, ok := reg.Context(name)
				if !ok {
					continue
				}
				infos = append(infos, ContextInfo{
					Name:     c.Name,
					Aliases:  c.Aliases,
					Defaults: c.Defaults,
					Active:   active[c.Name],
				})
			}

			r := cmdCtx.Renderer
			if handled, err := r.Data(infos); handled {
				return err
			}

			r.Header(1, fmt.Sprintf("Contexts (%d total)", len(infos)))
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				mark := ""
				if info.Active {
					mark = "✓"
				}
				rows = append(rows, []string{info.Name, strings.Join(info.Aliases, ", "), formatDefaults(info.Defaults), mark})
			}
			r.Table([]string{"Name", "Aliases", "Defaults", "Active"}, rows)
			return nil
		},
	}
}

func formatDefaults(defaults map[string]float64) string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatFloat(defaults[k]))
	}
	return strings.Join(parts, ", ")
}
