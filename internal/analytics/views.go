// Package analytics implements the filter-and-aggregate pipeline behind the
// dashboard panels. Everything here is a pure function of the dataset and a
// Filters value.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"superstore/internal/core"
	"superstore/internal/dataset"
)

// CategoryTotal is the summed sales of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Sales    decimal.Decimal `json:"sales"`
}

// CategoryShare is a CategoryTotal plus its fraction of the overall total.
type CategoryShare struct {
	Category string          `json:"category"`
	Sales    decimal.Decimal `json:"sales"`
	Fraction float64         `json:"fraction"`
}

// ScatterRow is the per-record projection used by the scatter panel.
type ScatterRow struct {
	Sales       decimal.Decimal `json:"sales"`
	Profit      decimal.Decimal `json:"profit"`
	Discount    float64         `json:"discount"`
	Quantity    int             `json:"quantity"`
	ProductName string          `json:"product_name"`
	Region      string          `json:"region"`
}

// MonthTotal is the summed sales of one calendar month.
type MonthTotal struct {
	Month core.Month      `json:"month"`
	Sales decimal.Decimal `json:"sales"`
}

// Views holds the five derived result sets for one Filters value.
type Views struct {
	Filters        Filters         `json:"filters"`
	MatchedRows    int             `json:"matched_rows"`
	CategoryTotals []CategoryTotal `json:"category_totals"`
	ScatterRows    []ScatterRow    `json:"scatter_rows"`
	MonthlyTrend   []MonthTotal    `json:"monthly_trend"`
	CategoryShare  []CategoryShare `json:"category_share"`
	Correlation    Matrix          `json:"correlation"`
}

// Filter returns the records matching f, in dataset order.
func Filter(ds *dataset.Dataset, f Filters) []core.Transaction {
	m := newMatcher(f)
	var out []core.Transaction
	ds.Each(func(_ int, tx core.Transaction) {
		if m.match(tx) {
			out = append(out, tx)
		}
	})
	return out
}

// ComputeViews filters ds once and derives every view from the surviving
// records. It never fails; an empty subset yields empty views and an
// all-NaN correlation matrix.
func ComputeViews(ds *dataset.Dataset, f Filters) Views {
	rows := Filter(ds, f)
	totals := CategoryTotals(rows)
	return Views{
		Filters:        f.Normalize(),
		MatchedRows:    len(rows),
		CategoryTotals: totals,
		ScatterRows:    Scatter(rows),
		MonthlyTrend:   MonthlyTrend(rows),
		CategoryShare:  Share(totals),
		Correlation:    Correlation(rows),
	}
}

// CategoryTotals sums sales per category, sorted by category label.
func CategoryTotals(rows []core.Transaction) []CategoryTotal {
	sums := map[string]decimal.Decimal{}
	for _, tx := range rows {
		sums[tx.Category] = sums[tx.Category].Add(tx.Sales)
	}
	out := make([]CategoryTotal, 0, len(sums))
	for cat, s := range sums {
		out = append(out, CategoryTotal{Category: cat, Sales: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Share converts category totals into pie slices. Fractions are 0 when the
// overall total is 0.
func Share(totals []CategoryTotal) []CategoryShare {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Sales)
	}
	out := make([]CategoryShare, 0, len(totals))
	for _, t := range totals {
		var frac float64
		if !sum.IsZero() {
			frac = t.Sales.Div(sum).InexactFloat64()
		}
		out = append(out, CategoryShare{Category: t.Category, Sales: t.Sales, Fraction: frac})
	}
	return out
}

// Scatter projects rows without aggregating, in input order.
func Scatter(rows []core.Transaction) []ScatterRow {
	out := make([]ScatterRow, 0, len(rows))
	for _, tx := range rows {
		out = append(out, ScatterRow{
			Sales:       tx.Sales,
			Profit:      tx.Profit,
			Discount:    tx.Discount,
			Quantity:    tx.Quantity,
			ProductName: tx.ProductName,
			Region:      tx.Region,
		})
	}
	return out
}

// MonthlyTrend sums sales per calendar month in ascending order. Months with
// no records are absent.
func MonthlyTrend(rows []core.Transaction) []MonthTotal {
	sums := map[core.Month]decimal.Decimal{}
	for _, tx := range rows {
		m := tx.Month()
		sums[m] = sums[m].Add(tx.Sales)
	}
	out := make([]MonthTotal, 0, len(sums))
	for m, s := range sums {
		out = append(out, MonthTotal{Month: m, Sales: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}
