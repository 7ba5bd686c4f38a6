package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"superstore/internal/cli"
	apphttp "superstore/internal/http"
	applog "superstore/internal/log"
)

const shutdownTimeout = 30 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var blockSuspicious bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset and serve the dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), blockSuspicious)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	cmd.Flags().String("backend", "", "data backend: csv, sqlite or sheets (overrides DATA_BACKEND)")
	cmd.Flags().String("dataset", "", "CSV dataset path (overrides DATASET_PATH)")
	cmd.Flags().String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	cmd.Flags().BoolVar(&blockSuspicious, "block-suspicious", false, "reject requests that look like scanner traffic")
	return cmd
}

func (a *app) runServe(parent context.Context, blockSuspicious bool) error {
	logger := a.logger
	if err := a.cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		return err
	}

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()

	ds, err := cli.LoadDataset(ctx, a.cfg, logger)
	if err != nil {
		logger.Error("Failed to load dataset", applog.FieldError, err,
			applog.FieldOperation, applog.OpLoad, "backend", a.cfg.DataBackend)
		return err
	}

	svcs := cli.NewServices(a.cfg, ds, logger)
	srv := apphttp.NewServer(":"+a.cfg.Port, svcs.Views, apphttp.ServerConfig{
		RateLimitPerMinute: a.cfg.RateLimitPerMinute,
		BlockSuspicious:    blockSuspicious,
		Logger:             logger,
	})

	logger.Info("Starting superstore server",
		"port", a.cfg.Port,
		"backend", a.cfg.DataBackend,
		"rows", ds.Len(),
		"events", a.cfg.AMQPEnabled())

	err = cli.RunUntilDone(ctx, logger, shutdownTimeout,
		func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		func(ctx context.Context) error {
			serr := srv.Shutdown(ctx)
			if cerr := svcs.Close(); cerr != nil {
				logger.Warn("Failed to close services", applog.FieldError, cerr)
			}
			return serr
		})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
