// Package cmd defines and implements the CLI commands for the epgqueue executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/epg-queue/internal/app"
	"github.com/JakeFAU/epg-queue/internal/config"
	"github.com/JakeFAU/epg-queue/internal/logging"
	"github.com/JakeFAU/epg-queue/internal/queue"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// appHolder carries the App out of the command tree so it is closed even when RunE fails
// (cobra skips post-run hooks on error).
type appHolder struct {
	app App
}

// App is what commands need from the service container.
type App interface {
	Close()
	Logger() *zap.Logger
	Creator() *queue.Creator
	PushMetrics(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "epgqueue",
		Short: "Builds the work queue for the TV guide grabbers.",
		Long: `epgqueue scans the site channel lists, expands every channel into one
work item per day, splits the items into clusters for parallel grabber
workers and stores the resulting queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			holder, ok := cmd.Context().Value(appKey).(*appHolder)
			if !ok {
				holder = &appHolder{}
				cmd.SetContext(context.WithValue(cmd.Context(), appKey, holder))
			}
			holder.app = appInstance
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newCreateQueueCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	holder, ok := ctx.Value(appKey).(*appHolder)
	if !ok || holder.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return holder.app, nil
}

// run executes the command tree with args and shuts the App down afterwards.
func run(ctx context.Context, args []string) error {
	holder := &appHolder{}
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(context.WithValue(ctx, appKey, holder))
	if holder.app != nil {
		holder.app.Close()
		_ = holder.app.Logger().Sync()
	}
	return err
}

// Execute runs the CLI and returns the process exit code. SIGINT and SIGTERM cancel
// the run.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "epgqueue: %v\n", err)
		return 1
	}
	return 0
}
