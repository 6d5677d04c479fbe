package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/cli/output"
	"github.com/leapstack-labs/leapunits/internal/server"
	"github.com/leapstack-labs/leapunits/internal/watch"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Revalidate definitions files when they change",
		Long: `Watch the configured definitions files and rebuild and validate the
registry each time one of them is saved. A failed rebuild keeps the last
good registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			files := cmdCtx.Cfg.DefinitionFiles()
			if len(files) == 0 {
				return errors.New("no definitions files configured (set definitions or extra_definitions)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			holder, err := server.NewHolder(registryBuilder(ctx, cmdCtx.Cfg, cmdCtx.Store, cmdCtx.Logger))
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			r.Printf("Watching %s\n", strings.Join(files, ", "))
			reportValidation(r, holder)

			w, err := watch.New(files, func(changed []string) {
				r.Println(r.Styles().Muted.Render("changed: " + strings.Join(changed, ", ")))
				if err := holder.Reload(); err != nil {
					r.Error(fmt.Sprintf("reload failed, keeping previous registry: %v", err))
					return
				}
				reportValidation(r, holder)
			}, watch.WithDebounce(debounce), watch.WithLogger(cmdCtx.Logger))
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Delay before reloading after a change")
	return cmd
}

func reportValidation(r *output.Renderer, holder *server.Holder) {
	source := fmt.Sprintf("generation %d", holder.Generation())
	var res CheckResult
	_ = holder.Do(func(reg *registry.Registry) error {
		res = checkRegistry(source, reg, false)
		return nil
	})
	renderCheckResults(r, []CheckResult{res})
}
