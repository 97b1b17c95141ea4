package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ironsheep/image-proxy/internal/config"
	"github.com/ironsheep/image-proxy/internal/fetch"
	"github.com/ironsheep/image-proxy/internal/imaging"
	"github.com/ironsheep/image-proxy/internal/logging"
	"github.com/ironsheep/image-proxy/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cmd.ErrOrStderr(), logging.LevelFromString(cfg.Logging.Level), cfg.Logging.Format)
	logger.Info("starting image-proxy", "version", Version, "commit", GitCommit, "built", BuildTime)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Wait() }()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildServer wires configuration into the operation table, the fetcher and
// the server.
func buildServer(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	ops, err := imaging.NewOperations(imaging.Options{
		JPEGQuality: cfg.JPEGQuality,
		Background:  cfg.RotateBackground,
		GridColor:   cfg.GridColor,
		MaxPixels:   cfg.MaxPixels,
	})
	if err != nil {
		return nil, &config.Error{Field: "rotate_background/grid_color", Message: err.Error()}
	}
	logger.Debug("operations registered", "names", ops.Names())

	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxImageBytes)
	dispatcher := server.NewDispatcher(ops, fetcher, cfg.MaxFieldBytes)
	return server.New(cfg, dispatcher, logger), nil
}
