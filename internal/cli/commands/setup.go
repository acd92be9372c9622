package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/cli/config"
	"github.com/leapstack-labs/geodash/internal/cli/output"
	"github.com/leapstack-labs/geodash/internal/state"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer set up by the
// root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Runtime is everything an app needs at run time: lazily opened sources,
// the optional history store and the app dependencies built over them.
type Runtime struct {
	Sources *source.Set
	History *state.SQLiteStore
	Deps    apps.Deps
}

// NewRuntime wires sources, history and app settings from cfg.
func NewRuntime(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Sources: source.NewSet(cfg.Sources, logger),
	}

	var observers []pipeline.Observer
	if cfg.History.Enabled {
		store, err := OpenHistory(cfg, logger)
		if err != nil {
			return nil, err
		}
		rt.History = store
		observers = append(observers, state.Observer(store, logger))
	}

	rt.Deps = apps.Deps{
		Sources:   rt.Sources,
		Settings:  cfg.Apps,
		LoadLayer: geo.LoadLayer,
		Observers: observers,
		Logger:    logger,
	}
	return rt, nil
}

// BuildApp builds the named app over the runtime.
func (rt *Runtime) BuildApp(ctx context.Context, name string) (*apps.App, error) {
	app, err := apps.Build(ctx, name, rt.Deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build app %s: %w", name, err)
	}
	return app, nil
}

// Close releases sources and the history store.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Sources != nil {
		errs = append(errs, rt.Sources.Close())
	}
	if rt.History != nil {
		errs = append(errs, rt.History.Close())
	}
	return errors.Join(errs...)
}

// OpenHistory opens the history database, creating its directory.
func OpenHistory(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	path := cfg.History.Path
	if dir := filepath.Dir(path); dir != "." && dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// completeAppNames offers registered app names for the first argument.
func completeAppNames(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return apps.Names(), cobra.ShellCompDirectiveNoFileComp
}
