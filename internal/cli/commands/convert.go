package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/state"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// ConvertOptions holds options for the convert command.
type ConvertOptions struct {
	Params    []string
	NoHistory bool
}

// ConvertOutput is the structured result of a conversion.
type ConvertOutput struct {
	Value    float64  `json:"value" yaml:"value"`
	From     string   `json:"from" yaml:"from"`
	To       string   `json:"to" yaml:"to"`
	Result   float64  `json:"result" yaml:"result"`
	Contexts []string `json:"contexts,omitempty" yaml:"contexts,omitempty"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	opts := &ConvertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [value] <from> <to>",
		Short: "Convert a quantity to other units",
		Long: `Convert a quantity between units.

The quantity is either a value followed by a units expression, or a single
expression such as "3 * ft + 2 * in". Conversions between dimensions that
differ need a context, enabled with --context.`,
		Example: `  # Plain conversion
  leapunits convert 12 inch cm

  # Expression
  leapunits convert "60 km / h" "m / s"

  # Wavelength to frequency in a medium with refractive index 1.33
  leapunits convert 500 nm THz --context sp --param n=1.33`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Params, "param", "p", nil, "Context parameter as name=value (applies to the most recent context)")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the conversion in the history")

	return cmd
}

func runConvert(cmd *cobra.Command, args []string, opts *ConvertOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := cmdCtx.Registry
	r := cmdCtx.Renderer

	params, err := parseParams(opts.Params)
	if err != nil {
		return err
	}
	if params != nil {
		if err := reg.EnableContexts(params); err != nil {
			return fmt.Errorf("failed to apply parameters: %w", err)
		}
	}

	q, dst, err := quantityArgs(reg, args)
	if err != nil {
		return err
	}

	out := ConvertOutput{
		Value:    q.Magnitude,
		From:     q.Units.String(),
		To:       dst,
		Contexts: reg.ActiveContexts(),
	}
	result, convErr := q.To(dst)
	if convErr == nil {
		out.Result = result.Magnitude
	}
	if !opts.NoHistory {
		recordConversion(cmd.Context(), cmdCtx, out, convErr)
	}
	if convErr != nil {
		return convErr
	}

	if handled, err := r.Data(out); handled {
		return err
	}

	styles := r.Styles()
	r.Printf("%s %s = %s %s\n",
		formatFloat(q.Magnitude), styles.Unit.Render(q.Units.String()),
		styles.Value.Render(formatFloat(result.Magnitude)), styles.Unit.Render(result.Units.String()))
	if len(out.Contexts) > 0 {
		r.Println(styles.Muted.Render("contexts: " + strings.Join(out.Contexts, ", ")))
	}
	return nil
}

// quantityArgs reads "value from to" or "expression to".
func quantityArgs(reg *registry.Registry, args []string) (registry.Quantity, string, error) {
	if len(args) == 3 {
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return registry.Quantity{}, "", fmt.Errorf("invalid value %q: %w", args[0], err)
		}
		src, err := reg.ParseUnits(args[1])
		if err != nil {
			return registry.Quantity{}, "", err
		}
		return reg.Quantity(value, src), args[2], nil
	}

	q, err := reg.ParseExpression(args[0])
	if err != nil {
		return registry.Quantity{}, "", err
	}
	return q, args[1], nil
}

func recordConversion(ctx context.Context, cmdCtx *CommandContext, out ConvertOutput, convErr error) {
	if cmdCtx.Store == nil {
		return
	}
	entry := &state.Conversion{
		Magnitude: out.Value,
		Src:       out.From,
		Dst:       out.To,
		Contexts:  out.Contexts,
	}
	if convErr != nil {
		entry.Error = convErr.Error()
	} else {
		result := out.Result
		entry.Result = &result
	}
	if err := cmdCtx.Store.RecordConversion(ctx, entry); err != nil {
		cmdCtx.Logger.Warn("failed to record conversion", "error", err)
	}
}
