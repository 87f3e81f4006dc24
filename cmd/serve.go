package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API and the analysis workers",
		Long: `Starts the HTTP API together with the bounded pool that executes
queued analyses. SIGINT or SIGTERM drains the server and cancels running
analyses, which are finalized as failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := resolveConfig(cmd.Context())
			if port == 0 {
				port = cfg.Server.Port
			}
			return serve(cmd.Context(), appInstance, fmt.Sprintf(":%d", port), cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

func serve(ctx context.Context, appInstance App, addr string, shutdownTimeout time.Duration) error {
	logger := appInstance.Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           appInstance.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("analysis workers started")
		appInstance.Orchestrator().Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}
