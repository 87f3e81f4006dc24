// Package cmd defines and implements the CLI commands for the site-analyzer
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/app"
	"github.com/JakeFAU/site-analyzer/internal/config"
	"github.com/JakeFAU/site-analyzer/internal/logging"
	"github.com/JakeFAU/site-analyzer/internal/orchestrator"
	"github.com/JakeFAU/site-analyzer/internal/search"
)

// ctxKeyType keys values stored on the command context.
type ctxKeyType string

const (
	appKey ctxKeyType = "app"
	cfgKey ctxKeyType = "config"
)

// App defines the application services commands use. Tests inject their own
// factory through newRootCmd.
type App interface {
	Close(ctx context.Context) error
	Logger() *zap.Logger
	Orchestrator() *orchestrator.Orchestrator
	Search() *search.Service
	Logs() analyzer.LogStore
	Artifacts() analyzer.ArtifactStore
	Handler() http.Handler
}

// appFactory builds the App for a loaded configuration.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd(factory appFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "site-analyzer",
		Short: "Crawls websites and builds searchable link maps.",
		Long: `site-analyzer renders a website in a browser session, walks its
same-site links breadth first, records progress as it goes and stores a
per-domain link map whose descriptions can be enhanced by a language model.`,
		SilenceUsage: true,

		// Runs before every subcommand: load config, build logger and app.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.Build(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
				Encoding:    cfg.Logging.Encoding,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := factory(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), cfgKey, cfg)
			ctx = context.WithValue(ctx, appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, ok := cmd.Context().Value(appKey).(App)
			if !ok || appInstance == nil {
				return nil
			}
			logger := appInstance.Logger()
			if err := appInstance.Close(context.WithoutCancel(cmd.Context())); err != nil {
				logger.Warn("error closing application services", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(
		newServeCmd(),
		newAnalyzeCmd(),
		newStatusCmd(),
		newSearchCmd(),
		newExportCmd(),
	)
	return cmd
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultAppFactory).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func resolveConfig(ctx context.Context) config.Config {
	cfg, _ := ctx.Value(cfgKey).(config.Config)
	return cfg
}
