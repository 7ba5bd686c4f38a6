package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the statements used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type TransactionRow struct {
	RowID       int64
	OrderDate   string
	Region      string
	Category    string
	ProductName string
	Sales       string
	Quantity    int64
	Discount    float64
	Profit      string
}

const listTransactions = `-- name: ListTransactions :many
SELECT row_id, order_date, region, category, product_name, sales, quantity, discount, profit
FROM transactions
ORDER BY row_id
`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(
			&i.RowID,
			&i.OrderDate,
			&i.Region,
			&i.Category,
			&i.ProductName,
			&i.Sales,
			&i.Quantity,
			&i.Discount,
			&i.Profit,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTransactions = `-- name: DeleteTransactions :exec
DELETE FROM transactions
`

func (q *Queries) DeleteTransactions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteTransactions)
	return err
}

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (row_id, order_date, region, category, product_name, sales, quantity, discount, profit)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertTransactionParams = TransactionRow

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.RowID,
		arg.OrderDate,
		arg.Region,
		arg.Category,
		arg.ProductName,
		arg.Sales,
		arg.Quantity,
		arg.Discount,
		arg.Profit,
	)
	return err
}

const countTransactions = `-- name: CountTransactions :one
SELECT COUNT(*) FROM transactions
`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactions)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const recordImport = `-- name: RecordImport :exec
INSERT INTO imports (source, row_count, imported_at) VALUES (?, ?, ?)
`

func (q *Queries) RecordImport(ctx context.Context, source string, rowCount int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, recordImport, source, rowCount, at.UTC())
	return err
}

type Import struct {
	Source     string
	RowCount   int64
	ImportedAt time.Time
}

const lastImport = `-- name: LastImport :one
SELECT source, row_count, imported_at FROM imports ORDER BY id DESC LIMIT 1
`

func (q *Queries) LastImport(ctx context.Context) (Import, error) {
	row := q.db.QueryRowContext(ctx, lastImport)
	var i Import
	err := row.Scan(&i.Source, &i.RowCount, &i.ImportedAt)
	return i, err
}
