// Package dataset loads the superstore transactions table once and exposes
// it as an immutable, read-only handle.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"superstore/internal/core"
	"superstore/internal/source"
)

// Dataset is the loaded transactions table. It is never mutated after Load
// returns and is safe for concurrent readers.
type Dataset struct {
	source   string
	records  []core.Transaction
	loadedAt time.Time

	regions    []string
	categories []string
	years      []int
}

// Load reads the table from r, validates the schema and parses every row.
// It fails with *core.LoadError, *core.SchemaError or *core.ParseError.
func Load(ctx context.Context, r source.Reader) (*Dataset, error) {
	start := time.Now()
	tbl, err := r.ReadTable(ctx)
	if err != nil {
		var le *core.LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &core.LoadError{Source: r.Name(), Err: err}
	}

	ds, err := FromTable(r.Name(), tbl)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Dataset loaded",
		"component", "dataset",
		"source", ds.source,
		"rows", len(ds.records),
		"regions", len(ds.regions),
		"categories", len(ds.categories),
		"years", len(ds.years),
		"duration_ms", time.Since(start).Milliseconds())
	return ds, nil
}

// FromTable builds a Dataset from an already-read table.
func FromTable(name string, tbl source.Table) (*Dataset, error) {
	cols, err := resolveColumns(name, tbl.Header)
	if err != nil {
		return nil, err
	}

	records := make([]core.Transaction, 0, len(tbl.Rows))
	for i, row := range tbl.Rows {
		tx, err := parseRow(row, cols)
		if err != nil {
			err.Source = name
			err.Row = i + 1
			err.Line = tbl.Line(i)
			return nil, err
		}
		records = append(records, tx)
	}
	return New(name, records), nil
}

// New wraps already-parsed records. The slice is copied so callers cannot
// mutate the dataset afterwards.
func New(name string, records []core.Transaction) *Dataset {
	ds := &Dataset{
		source:   name,
		records:  slices.Clone(records),
		loadedAt: time.Now(),
	}
	ds.indexDomains()
	return ds
}

// Source names where the data came from.
func (d *Dataset) Source() string { return d.source }

// LoadedAt is the time the dataset was built.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// At returns record i by value.
func (d *Dataset) At(i int) core.Transaction { return d.records[i] }

// Records returns a copy of all records.
func (d *Dataset) Records() []core.Transaction { return slices.Clone(d.records) }

// Each calls fn for every record in load order.
func (d *Dataset) Each(fn func(i int, tx core.Transaction)) {
	for i, tx := range d.records {
		fn(i, tx)
	}
}

// Regions returns the distinct region labels, sorted.
func (d *Dataset) Regions() []string { return slices.Clone(d.regions) }

// Categories returns the distinct category labels, sorted.
func (d *Dataset) Categories() []string { return slices.Clone(d.categories) }

// Years returns the distinct order years, ascending.
func (d *Dataset) Years() []int { return slices.Clone(d.years) }

// DiscountBounds returns the smallest and largest stored discount, or (0, 0)
// for an empty dataset.
func (d *Dataset) DiscountBounds() (lo, hi float64) {
	for i, tx := range d.records {
		if i == 0 || tx.Discount < lo {
			lo = tx.Discount
		}
		if i == 0 || tx.Discount > hi {
			hi = tx.Discount
		}
	}
	return lo, hi
}

func (d *Dataset) indexDomains() {
	regions := map[string]struct{}{}
	cats := map[string]struct{}{}
	years := map[int]struct{}{}
	for _, tx := range d.records {
		regions[tx.Region] = struct{}{}
		cats[tx.Category] = struct{}{}
		years[tx.Year] = struct{}{}
	}
	d.regions = sortedKeys(regions)
	d.categories = sortedKeys(cats)
	d.years = make([]int, 0, len(years))
	for y := range years {
		d.years = append(d.years, y)
	}
	sort.Ints(d.years)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// columnIndex maps each required column to its header position.
type columnIndex map[string]int

func resolveColumns(name string, header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}
	cols := make(columnIndex, len(core.RequiredColumns))
	var missing []string
	for _, c := range core.RequiredColumns {
		i, ok := pos[normalizeHeader(c)]
		if !ok {
			missing = append(missing, c)
			continue
		}
		cols[c] = i
	}
	if len(missing) > 0 {
		return nil, &core.SchemaError{Source: name, Missing: missing}
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseRow returns a *core.ParseError with only column, value and cause set;
// the caller fills in the location.
func parseRow(row []string, cols columnIndex) (core.Transaction, *core.ParseError) {
	fail := func(col string, err error) (core.Transaction, *core.ParseError) {
		return core.Transaction{}, &core.ParseError{Column: col, Value: cell(row, cols[col]), Err: err}
	}

	date, err := core.ParseDate(cell(row, cols[core.ColOrderDate]))
	if err != nil {
		return fail(core.ColOrderDate, err)
	}
	sales, err := core.ParseAmount(cell(row, cols[core.ColSales]))
	if err != nil {
		return fail(core.ColSales, err)
	}
	if sales.IsNegative() {
		return fail(core.ColSales, fmt.Errorf("%w: sales must be non-negative", core.ErrInvalidNumber))
	}
	qty, err := core.ParseQuantity(cell(row, cols[core.ColQuantity]))
	if err != nil {
		return fail(core.ColQuantity, err)
	}
	discount, err := core.ParseDiscount(cell(row, cols[core.ColDiscount]))
	if err != nil {
		return fail(core.ColDiscount, err)
	}
	profit, err := core.ParseAmount(cell(row, cols[core.ColProfit]))
	if err != nil {
		return fail(core.ColProfit, err)
	}

	return core.NewTransaction(
		date,
		cell(row, cols[core.ColRegion]),
		cell(row, cols[core.ColCategory]),
		cell(row, cols[core.ColProductName]),
		sales,
		qty,
		discount,
		profit,
	), nil
}
