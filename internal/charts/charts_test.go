package charts

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chart "github.com/wcharczuk/go-chart/v2"

	"superstore/internal/analytics"
	"superstore/internal/core"
	"superstore/internal/dataset"
)

var pngMagic = []byte("\x89PNG")

func sampleViews(t *testing.T) analytics.Views {
	t.Helper()
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}
	ds := dataset.New("fixture", []core.Transaction{
		core.NewTransaction(day("2016-03-04"), "West", "Technology", "Phone", decimal.NewFromInt(100), 1, 0.1, decimal.NewFromInt(10)),
		core.NewTransaction(day("2016-01-20"), "East", "Technology", "Binder", decimal.NewFromInt(50), 2, 0.5, decimal.NewFromInt(-5)),
		core.NewTransaction(day("2017-02-11"), "West", "Furniture", "Chair", decimal.NewFromInt(200), 3, 0.0, decimal.NewFromInt(30)),
	})
	return analytics.ComputeViews(ds, analytics.DefaultFilters())
}

func TestRenderEveryKind(t *testing.T) {
	v := sampleViews(t)
	for _, kind := range Kinds {
		for _, format := range []Format{FormatPNG, FormatSVG} {
			t.Run(string(kind)+"."+string(format), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, Render(&buf, kind, format, v, Options{Width: 320, Height: 240}))
				if format == FormatPNG {
					assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
				} else {
					assert.Contains(t, buf.String(), "<svg")
				}
			})
		}
	}
}

func TestRenderEmptyViews(t *testing.T) {
	v := analytics.ComputeViews(dataset.New("empty", nil), analytics.DefaultFilters())
	for _, kind := range Kinds {
		var buf bytes.Buffer
		err := Render(&buf, kind, FormatPNG, v, Options{})
		assert.ErrorIs(t, err, ErrNoData, string(kind))
		assert.Zero(t, buf.Len())
	}
}

func TestRenderSinglePoint(t *testing.T) {
	v := sampleViews(t)
	v.ScatterRows = v.ScatterRows[:1]
	v.MonthlyTrend = v.MonthlyTrend[:1]
	v.CategoryTotals = v.CategoryTotals[:1]

	var buf bytes.Buffer
	require.NoError(t, Scatter(&buf, FormatSVG, v.ScatterRows, Options{}))
	buf.Reset()
	require.NoError(t, Trend(&buf, FormatSVG, v.MonthlyTrend, Options{}))
	buf.Reset()
	require.NoError(t, Bar(&buf, FormatSVG, v.CategoryTotals, Options{}))
}

func TestPieSkipsZeroShares(t *testing.T) {
	share := []analytics.CategoryShare{
		{Category: "Technology", Sales: decimal.Zero, Fraction: 0},
	}
	assert.ErrorIs(t, Pie(&bytes.Buffer{}, FormatPNG, share, Options{}), ErrNoData)
}

func TestParse(t *testing.T) {
	k, err := ParseKind("trend")
	require.NoError(t, err)
	assert.Equal(t, KindTrend, k)

	_, err = ParseKind("radar")
	assert.ErrorIs(t, err, ErrUnknownChart)

	f, err := ParseFormat("SVG")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	assert.Equal(t, "image/png", FormatPNG.ContentType())

	_, err = ParseFormat("gif")
	assert.ErrorIs(t, err, ErrUnknownChart)
}

func TestMoneyFormatter(t *testing.T) {
	assert.Equal(t, "950", moneyFormatter(950.0))
	assert.Equal(t, "12.5k", moneyFormatter(12500.0))
	assert.Equal(t, "-2.0M", moneyFormatter(-2e6))
	assert.Equal(t, "x", moneyFormatter("x"))
}

func TestFixedRange(t *testing.T) {
	// compare the interface itself; a typed nil pointer would reach go-chart
	assert.True(t, fixedRange([]float64{1, 2}) == nil)
	assert.True(t, fixedRange(nil) == nil)

	r, ok := fixedRange([]float64{5, 5}).(*chart.ContinuousRange)
	require.True(t, ok)
	assert.Less(t, r.Min, 5.0)
	assert.Greater(t, r.Max, 5.0)
}

func TestScatterAndTrendWithSpread(t *testing.T) {
	rows := []analytics.ScatterRow{
		{Sales: decimal.NewFromInt(5), Profit: decimal.NewFromInt(1), Region: "West"},
		{Sales: decimal.NewFromInt(7), Profit: decimal.NewFromInt(3), Region: "West"},
		{Sales: decimal.NewFromInt(40), Profit: decimal.NewFromInt(-8), Region: "East"},
	}
	trend := []analytics.MonthTotal{
		{Month: core.Month{Year: 2016, Month: time.January}, Sales: decimal.NewFromInt(120)},
		{Month: core.Month{Year: 2016, Month: time.February}, Sales: decimal.NewFromInt(80)},
		{Month: core.Month{Year: 2016, Month: time.April}, Sales: decimal.NewFromInt(310)},
	}
	for _, format := range []Format{FormatPNG, FormatSVG} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NotPanics(t, func() {
				require.NoError(t, Scatter(&buf, format, rows, Options{}))
			})
			assert.NotZero(t, buf.Len())

			buf.Reset()
			require.NotPanics(t, func() {
				require.NoError(t, Trend(&buf, format, trend, Options{}))
			})
			assert.NotZero(t, buf.Len())
		})
	}
}
