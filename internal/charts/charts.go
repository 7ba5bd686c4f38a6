// Package charts renders the dashboard views to PNG or SVG with go-chart.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"superstore/internal/analytics"
)

// Kind names a chart endpoint.
type Kind string

const (
	KindBar     Kind = "bar"
	KindScatter Kind = "scatter"
	KindTrend   Kind = "trend"
	KindPie     Kind = "pie"
)

// Kinds lists the renderable charts in panel order.
var Kinds = []Kind{KindBar, KindScatter, KindTrend, KindPie}

// Format is an output encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ErrNoData is returned when a view has nothing to draw. Callers should
// answer with an empty response rather than a broken image.
var ErrNoData = errors.New("no data to chart")

// ErrUnknownChart is returned for kinds or formats not listed above.
var ErrUnknownChart = errors.New("unknown chart")

const (
	defaultWidth  = 640
	defaultHeight = 400
)

// ParseKind validates a chart name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChart, s)
}

// ParseFormat validates an output format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	}
	return "", fmt.Errorf("%w: format %q", ErrUnknownChart, s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == FormatSVG {
		return chart.SVG
	}
	return chart.PNG
}

// Options sizes the output image; zero values use the defaults.
type Options struct {
	Width  int
	Height int
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// Render draws chart kind from v into w.
func Render(w io.Writer, kind Kind, format Format, v analytics.Views, opts Options) error {
	switch kind {
	case KindBar:
		return Bar(w, format, v.CategoryTotals, opts)
	case KindScatter:
		return Scatter(w, format, v.ScatterRows, opts)
	case KindTrend:
		return Trend(w, format, v.MonthlyTrend, opts)
	case KindPie:
		return Pie(w, format, v.CategoryShare, opts)
	}
	return fmt.Errorf("%w: %q", ErrUnknownChart, kind)
}

// Bar draws total sales per category.
func Bar(w io.Writer, format Format, totals []analytics.CategoryTotal, opts Options) error {
	if len(totals) == 0 {
		return ErrNoData
	}
	width, height := opts.size()
	bars := make([]chart.Value, len(totals))
	values := make([]float64, len(totals))
	for i, t := range totals {
		v := t.Sales.InexactFloat64()
		bars[i] = chart.Value{Label: t.Category, Value: v}
		values[i] = v
	}
	bc := chart.BarChart{
		Title:      "Sales by Category",
		Width:      width,
		Height:     height,
		BarWidth:   barWidth(width, len(bars)),
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			ValueFormatter: moneyFormatter,
			Range:          barRange(values),
		},
		Bars: bars,
	}
	if err := bc.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// Scatter draws profit against sales, one colored series per region.
func Scatter(w io.Writer, format Format, rows []analytics.ScatterRow, opts Options) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	width, height := opts.size()

	byRegion := map[string]*chart.ContinuousSeries{}
	var xs, ys []float64
	for _, r := range rows {
		s, ok := byRegion[r.Region]
		if !ok {
			s = &chart.ContinuousSeries{Name: r.Region}
			byRegion[r.Region] = s
		}
		x, y := r.Sales.InexactFloat64(), r.Profit.InexactFloat64()
		s.XValues = append(s.XValues, x)
		s.YValues = append(s.YValues, y)
		xs = append(xs, x)
		ys = append(ys, y)
	}
	regions := make([]string, 0, len(byRegion))
	for name := range byRegion {
		regions = append(regions, name)
	}
	sort.Strings(regions)

	series := make([]chart.Series, 0, len(regions))
	for i, name := range regions {
		s := byRegion[name]
		s.Style = pointStyle(chart.GetDefaultColor(i))
		series = append(series, *s)
	}

	ch := chart.Chart{
		Title:      "Profit vs Sales",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12}},
		XAxis:      chart.XAxis{Name: "Sales", ValueFormatter: moneyFormatter, Range: fixedRange(xs)},
		YAxis:      chart.YAxis{Name: "Profit", ValueFormatter: moneyFormatter, Range: fixedRange(ys)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render scatter chart: %w", err)
	}
	return nil
}

// Trend draws monthly sales totals as a line.
func Trend(w io.Writer, format Format, trend []analytics.MonthTotal, opts Options) error {
	if len(trend) == 0 {
		return ErrNoData
	}
	width, height := opts.size()

	s := chart.TimeSeries{
		Name:    "Sales",
		XValues: make([]time.Time, len(trend)),
		YValues: make([]float64, len(trend)),
		Style:   chart.Style{StrokeWidth: 2, DotWidth: 3},
	}
	for i, m := range trend {
		s.XValues[i] = m.Month.Start()
		s.YValues[i] = m.Sales.InexactFloat64()
	}

	xAxis := chart.XAxis{Name: "Month", ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01")}
	if len(trend) == 1 {
		// a lone month has no x extent
		only := s.XValues[0]
		xAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(only.AddDate(0, -1, 0)),
			Max: chart.TimeToFloat64(only.AddDate(0, 1, 0)),
		}
	}

	ch := chart.Chart{
		Title:      "Monthly Sales",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12}},
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: "Sales", ValueFormatter: moneyFormatter, Range: fixedRange(s.YValues)},
		Series:     []chart.Series{s},
	}
	if err := ch.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}

// Pie draws each category's share of sales.
func Pie(w io.Writer, format Format, share []analytics.CategoryShare, opts Options) error {
	values := make([]chart.Value, 0, len(share))
	for _, s := range share {
		if s.Fraction <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", s.Category, s.Fraction*100),
			Value: s.Fraction,
		})
	}
	if len(values) == 0 {
		return ErrNoData
	}
	width, height := opts.size()
	pc := chart.PieChart{
		Title:  "Sales Share",
		Width:  width,
		Height: height,
		Values: values,
	}
	if err := pc.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render pie chart: %w", err)
	}
	return nil
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func barWidth(width, n int) int {
	bw := (width - 120) / (n * 2)
	if bw < 8 {
		return 8
	}
	if bw > 80 {
		return 80
	}
	return bw
}

// barRange always includes zero so bars grow from the axis.
func barRange(vals []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi * 1.05}
}

// fixedRange returns a nil interface when vals span a non-empty interval so
// go-chart picks its own bounds, and a padded range around a single value
// otherwise.
func fixedRange(vals []float64) chart.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(vals) == 0 || hi > lo {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.1, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func moneyFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	switch a := math.Abs(f); {
	case a >= 1e6:
		return fmt.Sprintf("%.1fM", f/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.1fk", f/1e3)
	}
	return fmt.Sprintf("%.0f", f)
}
