// Package backend builds the dataset source selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"superstore/internal/config"
	"superstore/internal/source"
	"superstore/internal/source/csvfile"
	"superstore/internal/source/google"
	"superstore/internal/storage"
)

// CleanupFunc releases resources held by a source.
type CleanupFunc func() error

// Result is a ready source plus its cleanup, which may be nil.
type Result struct {
	Reader  source.Reader
	Cleanup CleanupFunc
}

// Close runs the cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates sources from configuration.
type Factory interface {
	Create(ctx context.Context, cfg *config.Config) (*Result, error)
}

// DefaultFactory knows the csv, sqlite and sheets backends.
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a factory logging through logger, or slog.Default when nil.
func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

var _ Factory = (*DefaultFactory)(nil)

// Create implements Factory.
func (f *DefaultFactory) Create(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	switch cfg.DataBackend {
	case config.BackendCSV:
		return f.createCSV(cfg), nil
	case config.BackendSQLite:
		return f.createSQLite(cfg)
	case config.BackendSheets:
		return f.createSheets(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}

func (f *DefaultFactory) createCSV(cfg *config.Config) *Result {
	r := csvfile.New(cfg.DatasetPath,
		csvfile.WithDelimiter(cfg.Delimiter()),
		csvfile.WithEncoding(cfg.CSVEncoding))
	f.logger.Info("Initialized CSV backend", "path", cfg.DatasetPath, "encoding", cfg.CSVEncoding)
	return &Result{Reader: r}
}

func (f *DefaultFactory) createSQLite(cfg *config.Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &Result{Reader: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheets(ctx context.Context, cfg *config.Config) (*Result, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		Range:           cfg.GoogleSheetRange,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "range", cfg.GoogleSheetRange)
	return &Result{Reader: cli}, nil
}
