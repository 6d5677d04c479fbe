package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr  string
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the units API over HTTP",
		Long: `Start an HTTP server exposing conversions, registry queries, saved
definitions and the conversion history as a JSON API. Prometheus metrics are
served on the configured metrics path.

Endpoints:
  GET    /api/convert?value=&from=&to=&context=
  POST   /api/convert
  GET    /api/dimensionality?expr=
  GET    /api/base?expr=
  GET    /api/compatible?expr=
  GET    /api/units?kind=units|prefixes|dimensions
  GET    /api/contexts
  POST   /api/reload
  GET    /api/definitions
  POST   /api/definitions
  DELETE /api/definitions/{name}
  GET    /api/history?limit=`,
		Example: `  # Serve on the configured address
  leapunits serve

  # Reload when definitions files change
  leapunits serve --addr :9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Address to listen on (default from config: 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload the registry when definitions files change")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder, err := server.NewHolder(registryBuilder(ctx, cfg, cmdCtx.Store, cmdCtx.Logger))
	if err != nil {
		return err
	}

	var watchFiles []string
	if opts.Watch {
		watchFiles = cfg.DefinitionFiles()
		if len(watchFiles) == 0 {
			cmdCtx.Renderer.Warning("--watch has no effect without definitions files")
		}
	}

	srv := server.NewServer(server.Config{
		Holder:      holder,
		Store:       cmdCtx.Store,
		Addr:        addr,
		MetricsPath: cfg.Server.MetricsPath,
		WatchFiles:  watchFiles,
		Logger:      cmdCtx.Logger,
	})

	r := cmdCtx.Renderer
	r.Printf("Serving units API on http://%s\n", addr)
	r.Println("Press Ctrl+C to stop")

	return srv.Serve(ctx)
}
