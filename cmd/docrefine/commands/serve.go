package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corpusforge/docrefine/cmd/docrefine/ui"
	"github.com/corpusforge/docrefine/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the refinement pipeline over HTTP",
	Long: `Starts an HTTP server exposing the in-process pipeline: POST a document
to /api/v1/refine and receive the refined text without touching the
filesystem. A /health endpoint reports liveness.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	stages, err := buildStages(cfg, logger)
	if err != nil {
		return err
	}

	svc := api.NewService(stages.Cleaner, stages.Segmenter, stages.Pruner, stages.Refiner, logger)
	router := api.NewRouter(svc, logger, cfg.Server.WriteTimeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()
	ui.Info("Listening on %s", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}
