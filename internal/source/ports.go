package source

import (
	"context"
)

// Ports for inbound dataset adapters.
type (
	// Table is a raw, untyped tabular result: one header row then data rows.
	// Lines optionally maps each data row to its physical position in the source.
	Table struct {
		Header []string
		Rows   [][]string
		Lines  []int
	}

	// Reader reads the dataset table from a backing store.
	Reader interface {
		// ReadTable returns the full table. Implementations must not return a
		// partially read table together with a nil error.
		ReadTable(ctx context.Context) (Table, error)
		// Name identifies the source in diagnostics (a path, DSN or sheet range).
		Name() string
	}
)

// Line returns the physical line of data row i, or 0 when unknown.
func (t Table) Line(i int) int {
	if i < 0 || i >= len(t.Lines) {
		return 0
	}
	return t.Lines[i]
}
