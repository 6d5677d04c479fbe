package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapunits/internal/cli/config"
	"github.com/leapstack-labs/leapunits/internal/cli/output"
	"github.com/leapstack-labs/leapunits/internal/server"
	"github.com/leapstack-labs/leapunits/internal/state"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	Store    state.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the state store and a
// registry built from the configuration plus the stored definitions.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx, err := NewCommandContextWithoutRegistry(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := state.OpenStore(cmdCtx.Cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}
	cleanup := func() {
		_ = store.Close()
	}

	reg, err := buildRegistry(cmd.Context(), cmdCtx.Cfg, store, cmdCtx.Logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	cmdCtx.Registry = reg
	cmdCtx.Store = store
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutRegistry creates a CommandContext with only the
// configuration, logger and renderer.
func NewCommandContextWithoutRegistry(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the current configuration, loading it from the working
// directory and environment when the root command did not.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// buildRegistry creates a registry from cfg and replays the definitions
// saved with `leapunits define`. A stored definition that no longer applies
// is skipped with a warning.
func buildRegistry(ctx context.Context, cfg *config.Config, store state.Store, logger *slog.Logger) (*registry.Registry, error) {
	reg, err := cfg.NewRegistry(logger)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return reg, nil
	}

	defs, err := store.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored definitions: %w", err)
	}
	for _, d := range defs {
		if err := reg.DefineString(d.Line); err != nil {
			logger.Warn("skipping stored definition", "name", d.Name, "line", d.Line, "error", err)
		}
	}
	return reg, nil
}

// registryBuilder returns a server.BuildFunc that rebuilds the registry the
// way NewCommandContext does.
func registryBuilder(ctx context.Context, cfg *config.Config, store state.Store, logger *slog.Logger) server.BuildFunc {
	return func() (*registry.Registry, error) {
		return buildRegistry(ctx, cfg, store, logger)
	}
}

// parseParams reads key=value context parameters.
func parseParams(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want name=value)", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %s: %w", key, err)
		}
		params[key] = f
	}
	return params, nil
}

// formatFloat renders a magnitude with the shortest exact representation.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// CompleteContexts completes context names from the configured registry.
func CompleteContexts(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := getConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg, err := cfg.NewRegistry(config.GetLogger(cmd.Context()))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return reg.Contexts(), cobra.ShellCompDirectiveNoFileComp
}
