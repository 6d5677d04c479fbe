package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/pkg/units"
)

// DimOutput is the structured result of the dim command.
type DimOutput struct {
	Expr           string          `json:"expr" yaml:"expr"`
	Dimensionality string          `json:"dimensionality" yaml:"dimensionality"`
	Dimensions     units.Container `json:"dimensions" yaml:"-"`
}

// BaseOutput is the structured result of the base command.
type BaseOutput struct {
	Expr   string          `json:"expr" yaml:"expr"`
	Factor float64         `json:"factor" yaml:"factor"`
	Units  string          `json:"units" yaml:"units"`
	Parts  units.Container `json:"parts" yaml:"-"`
}

// ParseOutput is the structured result of the parse command.
type ParseOutput struct {
	Expr      string  `json:"expr" yaml:"expr"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
	Units     string  `json:"units" yaml:"units"`
}

// NewDimCommand creates the dim command.
func NewDimCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dim <expr>",
		Short: "Show the dimensionality of a units expression",
		Example: `  leapunits dim newton
  leapunits dim "km / h"
  leapunits dim "[energy]"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			dim, err := cmdCtx.Registry.GetDimensionality(args[0])
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			out := DimOutput{Expr: args[0], Dimensionality: dim.String(), Dimensions: dim}
			if handled, err := r.Data(out); handled {
				return err
			}
			r.Println(r.Styles().Unit.Render(dim.String()))
			return nil
		},
	}
}

// NewBaseCommand creates the base command.
func NewBaseCommand() *cobra.Command {
	var root bool

	cmd := &cobra.Command{
		Use:   "base <expr>",
		Short: "Reduce a units expression to base units",
		Long: `Reduce a units expression to base units and print the factor that
converts a quantity in the expression to them.

With --root, units are reduced all the way to the units that define the base
dimensions, ignoring any unit selected with @defaults.`,
		Example: `  leapunits base km
  leapunits base "kWh / day"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg := cmdCtx.Registry
			get := reg.GetBaseUnits
			if root {
				get = reg.GetRootUnits
			}
			factor, base, err := get(args[0])
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			out := BaseOutput{Expr: args[0], Factor: factor, Units: base.String(), Parts: base}
			if handled, err := r.Data(out); handled {
				return err
			}
			r.Printf("%s %s\n", r.Styles().Value.Render(formatFloat(factor)), r.Styles().Unit.Render(base.String()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&root, "root", false, "Reduce to root units")
	return cmd
}

// NewCompatibleCommand creates the compatible command.
func NewCompatibleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compatible <expr>",
		Short: "List units with the same dimensionality",
		Long: `List the units a quantity in the expression can be converted to,
including those reachable through the enabled contexts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			names, err := cmdCtx.Registry.GetCompatibleUnits(args[0])
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if handled, err := r.Data(names); handled {
				return err
			}
			for _, name := range names {
				r.Println(name)
			}
			return nil
		},
	}
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	var vars []string

	cmd := &cobra.Command{
		Use:   "parse <expr>",
		Short: "Evaluate a quantity expression",
		Long: `Evaluate an expression of numbers and units and print the resulting
quantity. Names bound with --var are substituted before units are looked up.`,
		Example: `  leapunits parse "3 * ft + 2 * in"
  leapunits parse "distance / t" --var distance=100 --var t=9.58`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			values, err := parseParams(vars)
			if err != nil {
				return err
			}
			q, err := cmdCtx.Registry.ParseExpressionWith(args[0], values)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			out := ParseOutput{Expr: args[0], Magnitude: q.Magnitude, Units: q.Units.String()}
			if handled, err := r.Data(out); handled {
				return err
			}
			r.Println(q.String())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&vars, "var", nil, "Variable as name=value")
	return cmd
}
