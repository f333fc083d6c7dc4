package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-persistence/config"
	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/goliatone/go-persistence/pkg/di"
	"github.com/spf13/cobra"
)

// app carries what the subcommands share once the config has been read.
type app struct {
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "persistence",
		Short: "Manage the conversation store",
		Long: `persistence creates the conversation schema, runs a sample conversation
against the configured store and checks the cache endpoint.

Settings come from persistence.yaml (or --config) and PERSISTENCE_*
environment variables, for example PERSISTENCE_DATABASE_URL.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./persistence.yaml or ./config/persistence.yaml)")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newDemoCmd(a))
	root.AddCommand(newCacheCmd(a))
	return root
}

// load reads the config and builds the logger.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// container builds the components and makes sure the schema exists.
func (a *app) container(ctx context.Context) (*di.Container, error) {
	container, err := di.NewContainer(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	if err := container.Factory().CreateSchema(ctx); err != nil {
		_ = container.Close(ctx)
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return container, nil
}
