// Package storage keeps a copy of the transactions table in SQLite so the
// dashboard can start without the original CSV.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"superstore/internal/core"
	"superstore/internal/source"
)

// ErrNoImports is returned by LastImport on a database that was never seeded.
var ErrNoImports = errors.New("no imports recorded")

const dateLayout = "2006-01-02"

// SQLiteRepository stores transactions in a local SQLite file.
type SQLiteRepository struct {
	path    string
	db      *sql.DB
	queries *Queries
}

var _ source.Reader = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{path: dbPath, db: db, queries: New(db)}, nil
}

// Name identifies the database in diagnostics.
func (r *SQLiteRepository) Name() string { return "sqlite:" + r.path }

// Close closes the database handle.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadTable returns the stored transactions as a raw table with the canonical
// header, so they pass through the same loader validation as a CSV file.
func (r *SQLiteRepository) ReadTable(ctx context.Context) (source.Table, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return source.Table{}, &core.LoadError{Source: r.Name(), Err: fmt.Errorf("list transactions: %w", err)}
	}

	t := source.Table{
		Header: append([]string(nil), core.RequiredColumns...),
		Rows:   make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.OrderDate,
			row.Region,
			row.Category,
			row.ProductName,
			row.Sales,
			strconv.FormatInt(row.Quantity, 10),
			strconv.FormatFloat(row.Discount, 'f', -1, 64),
			row.Profit,
		})
	}
	slog.DebugContext(ctx, "SQLite table read", "component", "storage", "path", r.path, "rows", len(t.Rows))
	return t, nil
}

// ReplaceTransactions swaps the stored table for txs in a single database
// transaction and records the import. Readers never observe a partial table.
func (r *SQLiteRepository) ReplaceTransactions(ctx context.Context, sourceName string, txs []core.Transaction) (err error) {
	start := time.Now()
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := dbtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "component", "storage", "error", rbErr)
			}
		}
	}()

	q := r.queries.WithTx(dbtx)
	if err = q.DeleteTransactions(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for i, tx := range txs {
		if err = q.InsertTransaction(ctx, InsertTransactionParams{
			RowID:       int64(i + 1),
			OrderDate:   tx.OrderDate.Format(dateLayout),
			Region:      tx.Region,
			Category:    tx.Category,
			ProductName: tx.ProductName,
			Sales:       tx.Sales.String(),
			Quantity:    int64(tx.Quantity),
			Discount:    tx.Discount,
			Profit:      tx.Profit.String(),
		}); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err = q.RecordImport(ctx, sourceName, int64(len(txs)), time.Now()); err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	if err = dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transactions imported",
		"component", "storage",
		"source", sourceName,
		"rows", len(txs),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Count returns the number of stored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// LastImport returns the most recent import record.
func (r *SQLiteRepository) LastImport(ctx context.Context) (Import, error) {
	imp, err := r.queries.LastImport(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNoImports
	}
	if err != nil {
		return Import{}, fmt.Errorf("last import: %w", err)
	}
	return imp, nil
}
