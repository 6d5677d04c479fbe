package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
	Clear bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversions",
		Long: `Show the conversions recorded by the convert command and the HTTP API,
newest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "Delete the history")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx, err := NewCommandContextWithoutRegistry(cmd)
	if err != nil {
		return err
	}
	store, err := state.OpenStore(cmdCtx.Cfg.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	r := cmdCtx.Renderer

	if opts.Clear {
		n, err := store.ClearConversions(cmd.Context())
		if err != nil {
			return err
		}
		r.Success(fmt.Sprintf("deleted %d entries", n))
		return nil
	}

	entries, err := store.ListConversions(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*state.Conversion{}
	}
	if handled, err := r.Data(entries); handled {
		return err
	}
	if len(entries) == 0 {
		r.Println("No conversions recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := r.Styles().Error.Render(e.Error)
		if e.Result != nil {
			result = formatFloat(*e.Result)
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			formatFloat(e.Magnitude) + " " + e.Src,
			e.Dst,
			result,
			strings.Join(e.Contexts, ", "),
		})
	}
	r.Table([]string{"Time", "Quantity", "To", "Result", "Contexts"}, rows)
	return nil
}
