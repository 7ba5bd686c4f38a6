package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore/internal/core"
	"superstore/internal/dataset"
)

func record(date, region, category string, sales string, qty int, discount float64, profit string) core.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return core.NewTransaction(d, region, category, "Item "+category, decimal.RequireFromString(sales), qty, discount, decimal.RequireFromString(profit))
}

// fourRecords is the reference scenario used across the pipeline tests.
func fourRecords() *dataset.Dataset {
	return dataset.New("fixture", []core.Transaction{
		record("2016-03-04", "West", "Tech", "100", 1, 0.1, "10"),
		record("2016-01-20", "East", "Tech", "50", 2, 0.5, "-5"),
		record("2017-02-11", "West", "Office", "200", 3, 0.0, "30"),
		record("2016-03-28", "South", "Office", "75", 1, 0.8, "5"),
	})
}

func totalsMap(ts []CategoryTotal) map[string]string {
	out := map[string]string{}
	for _, t := range ts {
		out[t.Category] = t.Sales.String()
	}
	return out
}

func TestFourRecordScenario(t *testing.T) {
	v := ComputeViews(fourRecords(), Filters{Discount: Range{Lo: 0, Hi: 0.5}})

	assert.Equal(t, 3, v.MatchedRows)
	assert.Equal(t, map[string]string{"Tech": "150", "Office": "200"}, totalsMap(v.CategoryTotals))
	for _, r := range v.ScatterRows {
		assert.NotEqual(t, "South", r.Region, "discount 0.8 record must be excluded")
	}
}

func TestConjunctionMatchesNaiveFilter(t *testing.T) {
	ds := fourRecords()
	cases := []Filters{
		DefaultFilters(),
		{Regions: []string{"West"}, Discount: Range{0, 0.8}},
		{Regions: []string{"West", "East"}, Categories: []string{"Tech"}, Discount: Range{0, 0.8}},
		{Years: []int{2016}, Discount: Range{0.1, 0.8}},
		{Categories: []string{"Office"}, Years: []int{2017}, Discount: Range{0, 0}},
		{Regions: []string{"Nowhere"}, Discount: Range{0, 0.8}},
	}
	in := func(v string, set []string) bool {
		if len(set) == 0 {
			return true
		}
		for _, s := range set {
			if s == v {
				return true
			}
		}
		return false
	}
	for _, f := range cases {
		var want []core.Transaction
		for _, tx := range ds.Records() {
			yearOK := len(f.Years) == 0
			for _, y := range f.Years {
				yearOK = yearOK || y == tx.Year
			}
			if in(tx.Region, f.Regions) && in(tx.Category, f.Categories) && yearOK &&
				tx.Discount >= f.Discount.Lo && tx.Discount <= f.Discount.Hi {
				want = append(want, tx)
			}
		}
		assert.Equal(t, want, Filter(ds, f), "filters %s", f)
	}
}

func TestComputeViewsIsIdempotent(t *testing.T) {
	ds := fourRecords()
	f := Filters{Regions: []string{"West", "East"}, Discount: Range{0, 0.8}}
	a, _ := json.Marshal(ComputeViews(ds, f))
	b, _ := json.Marshal(ComputeViews(ds, f))
	assert.JSONEq(t, string(a), string(b))
}

func TestSumInvariant(t *testing.T) {
	ds := fourRecords()
	for _, f := range []Filters{DefaultFilters(), {Discount: Range{0, 0.5}}, {Years: []int{2016}, Discount: Range{0, 0.8}}} {
		v := ComputeViews(ds, f)
		totals, scatter, share := decimal.Zero, decimal.Zero, decimal.Zero
		for _, c := range v.CategoryTotals {
			totals = totals.Add(c.Sales)
		}
		for _, r := range v.ScatterRows {
			scatter = scatter.Add(r.Sales)
		}
		for _, s := range v.CategoryShare {
			share = share.Add(s.Sales)
		}
		assert.True(t, totals.Equal(scatter), "totals %s scatter %s", totals, scatter)
		assert.True(t, totals.Equal(share))
	}
}

func TestEmptyResult(t *testing.T) {
	v := ComputeViews(fourRecords(), Filters{Regions: []string{"Central"}, Discount: Range{0, 0.8}})

	assert.Zero(t, v.MatchedRows)
	assert.Empty(t, v.CategoryTotals)
	assert.Empty(t, v.ScatterRows)
	assert.Empty(t, v.MonthlyTrend)
	assert.Empty(t, v.CategoryShare)
	for i := range v.Correlation.Values {
		for j := range v.Correlation.Values[i] {
			assert.True(t, math.IsNaN(v.Correlation.At(i, j)))
		}
	}

	empty := ComputeViews(dataset.New("empty", nil), DefaultFilters())
	assert.Zero(t, empty.MatchedRows)
}

func TestDiscountBoundsInclusive(t *testing.T) {
	ds := fourRecords()
	const eps = 1e-9

	v := ComputeViews(ds, Filters{Discount: Range{0.1, 0.5}})
	assert.Equal(t, 2, v.MatchedRows)

	v = ComputeViews(ds, Filters{Discount: Range{0.1 + eps, 0.5}})
	assert.Equal(t, 1, v.MatchedRows, "lo+eps excludes the 0.1 record")

	v = ComputeViews(ds, Filters{Discount: Range{0.1, 0.5 - eps}})
	assert.Equal(t, 1, v.MatchedRows, "hi-eps excludes the 0.5 record")
}

func TestReversedRangeIsSwapped(t *testing.T) {
	ds := fourRecords()
	a := ComputeViews(ds, Filters{Discount: Range{0.5, 0}})
	b := ComputeViews(ds, Filters{Discount: Range{0, 0.5}})
	assert.Equal(t, b.MatchedRows, a.MatchedRows)
	assert.Equal(t, Range{0, 0.5}, a.Filters.Discount)
}

func TestMonthlyTrendOrdering(t *testing.T) {
	rows := fourRecords().Records()
	reversed := []core.Transaction{rows[3], rows[2], rows[1], rows[0]}

	want := []string{"2016-01", "2016-03", "2017-02"}
	for _, in := range [][]core.Transaction{rows, reversed} {
		trend := MonthlyTrend(in)
		got := make([]string, len(trend))
		for i, m := range trend {
			got[i] = m.Month.String()
		}
		assert.Equal(t, want, got)
		assert.Equal(t, "175", trend[1].Sales.String(), "March 2016 sums two records")
	}
}

func TestShareFractions(t *testing.T) {
	share := Share([]CategoryTotal{
		{Category: "A", Sales: decimal.NewFromInt(25)},
		{Category: "B", Sales: decimal.NewFromInt(75)},
	})
	require.Len(t, share, 2)
	assert.InDelta(t, 0.25, share[0].Fraction, 1e-12)
	assert.InDelta(t, 0.75, share[1].Fraction, 1e-12)

	zero := Share([]CategoryTotal{{Category: "A", Sales: decimal.Zero}})
	assert.Zero(t, zero[0].Fraction)
}

func TestScatterKeepsDatasetOrder(t *testing.T) {
	v := ComputeViews(fourRecords(), DefaultFilters())
	require.Len(t, v.ScatterRows, 4)
	assert.Equal(t, []string{"West", "East", "West", "South"},
		[]string{v.ScatterRows[0].Region, v.ScatterRows[1].Region, v.ScatterRows[2].Region, v.ScatterRows[3].Region})
	assert.Equal(t, "-5", v.ScatterRows[1].Profit.String())
}

func TestFiltersKeyIsCanonical(t *testing.T) {
	a := Filters{Regions: []string{"West", "East"}, Years: []int{2017, 2016}, Discount: Range{0.5, 0}}
	b := Filters{Regions: []string{"East", "West", "East"}, Years: []int{2016, 2017}, Discount: Range{0, 0.5}}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "r=East,West;c=;y=2016,2017;d=0,0.5", a.String())

	c := Filters{Regions: []string{"West"}, Discount: Range{0, 0.5}}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestFiltersKeyEscapesSeparators(t *testing.T) {
	joined := Filters{Regions: []string{"A,B"}, Discount: Range{0, 0.8}}
	pair := Filters{Regions: []string{"A", "B"}, Discount: Range{0, 0.8}}
	assert.NotEqual(t, joined.Key(), pair.Key())
	assert.Equal(t, `r=A\,B;c=;y=;d=0,0.8`, joined.String())

	semi := Filters{Categories: []string{"x;y=2016"}, Discount: Range{0, 0.8}}
	split := Filters{Categories: []string{"x"}, Years: []int{2016}, Discount: Range{0, 0.8}}
	assert.NotEqual(t, semi.Key(), split.Key())
}
