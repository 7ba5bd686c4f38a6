// Package cli provides the startup and shutdown plumbing shared by
// cmd/superstore and cmd/superstore-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"superstore/internal/amqp"
	"superstore/internal/analytics"
	"superstore/internal/backend"
	"superstore/internal/cache"
	"superstore/internal/config"
	"superstore/internal/dataset"
	applog "superstore/internal/log"
	"superstore/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger builds the application logger from level and format names and
// installs it as the slog default.
func SetupLogger(level, format string, w io.Writer) (*applog.Logger, error) {
	lvl, err := applog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stdout
	}
	logger, err := applog.New(applog.Config{Level: lvl, Format: format, Component: applog.ComponentApp, Output: w})
	if err != nil {
		return nil, err
	}
	applog.SetDefault(logger)
	return logger, nil
}

// LoadDataset opens the configured backend and loads the dataset through
// it. The backend is released before returning.
func LoadDataset(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*dataset.Dataset, error) {
	res, err := backend.NewFactory(logger.Logger.With(applog.FieldComponent, applog.ComponentBackend)).Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			logger.Warn("Failed to release backend", applog.FieldError, cerr)
		}
	}()
	return dataset.Load(ctx, res.Reader)
}

// Services bundles the view service with the cache sweeper that serves it.
type Services struct {
	Views *services.ViewService
	Cache *cache.Manager
}

// Close stops the sweeper and releases the event publisher.
func (s *Services) Close() error {
	s.Cache.Stop()
	return s.Views.Close()
}

// NewServices wires the view cache (disabled when VIEW_CACHE_SIZE is 0) and, when AMQP is configured, the event
// publisher around ds.
func NewServices(cfg *config.Config, ds *dataset.Dataset, logger *applog.Logger) *Services {
	mgr := cache.NewManager()
	var views cache.Cache[uint64, analytics.Views]
	if cfg.ViewCacheSize > 0 {
		lru := cache.NewLRU[uint64, analytics.Views](cfg.ViewCacheSize, cfg.ViewCacheTTL)
		mgr.Register(lru)
		mgr.StartCleanup(cfg.ViewCacheTTL)
		views = lru
	}

	var pub services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// events are optional; the dashboard runs without them
			logger.WithComponent(applog.ComponentAMQP).Warn("AMQP unavailable, view events disabled", applog.FieldError, err)
		} else {
			pub = client
		}
	}
	return &Services{Views: services.NewViewService(ds, views, pub), Cache: mgr}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunUntilDone runs serve until it fails or ctx is cancelled, then calls
// shutdown with a fresh context bounded by timeout. Errors from either side
// are returned; a clean shutdown returns nil.
func RunUntilDone(ctx context.Context, logger *applog.Logger, timeout time.Duration, serve func() error, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if err := serve(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Shutdown timeout reached")
			}
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
