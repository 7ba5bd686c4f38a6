package http

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"superstore/internal/analytics"
	"superstore/internal/charts"
	applog "superstore/internal/log"
	"superstore/internal/services"
)

var templateFuncs = template.FuncMap{
	"money":   func(d decimal.Decimal) string { return d.StringFixed(2) },
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"discount": func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	},
}

// HeatCell is one correlation matrix cell as the heatmap table shows it.
type HeatCell struct {
	Label string
	Class string
}

// HeatRow is one heatmap line, headed by its column name.
type HeatRow struct {
	Name  string
	Cells []HeatCell
}

// ChartPanel links one rendered chart to the current filters.
type ChartPanel struct {
	Kind    string
	Title   string
	Src     string
	HasData bool
}

// PanelsData feeds panels.html.
type PanelsData struct {
	Views       analytics.Views
	Charts      []ChartPanel
	HeatColumns []string
	Heat        []HeatRow
	Query       string
}

// control is one selectable option in the sidebar.
type control struct {
	Value    string
	Selected bool
}

// DashboardData feeds dashboard.html.
type DashboardData struct {
	Regions     []control
	Categories  []control
	Years       []control
	DiscountMin float64
	DiscountMax float64
	// Step is the slider step attribute, "any" when a bound is off the grid
	Step        string
	Lo, Hi      float64
	Panels      PanelsData
}

var chartTitles = map[charts.Kind]string{
	charts.KindBar:     "Sales by Category",
	charts.KindScatter: "Profit vs Sales",
	charts.KindTrend:   "Monthly Sales",
	charts.KindPie:     "Sales Share",
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		InternalServerError("templates not loaded").Write(w)
		return
	}
	v, ok := s.computeViews(w, r)
	if !ok {
		return
	}
	data := newDashboardData(s.views.Options(), v)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard template execution failed",
			applog.FieldError, err, applog.FieldOperation, applog.OpRender)
		InternalServerError("failed to render dashboard").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.Bytes()).Write(w)
}

// handlePanels renders the five panels for the current control state.
func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	v, ok := s.computeViews(w, r)
	if !ok {
		return
	}
	_, issues := ParseFilters(r.URL.Query())

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "panels.html", newPanelsData(v)); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Panels template execution failed",
			applog.FieldError, err, applog.FieldOperation, applog.OpRender)
		InternalServerError("failed to render panels").Write(w)
		return
	}
	NewHTMXResponse().
		BodyHTML(buf.Bytes()).
		TriggerViewsUpdated(v.MatchedRows, strconv.FormatUint(v.Filters.Key(), 16)).
		TriggerFiltersAdjusted(issues).
		Write(w)
}

func newDashboardData(opts services.Options, v analytics.Views) DashboardData {
	f := v.Filters
	years := make([]string, len(opts.Years))
	selectedYears := make([]string, len(f.Years))
	for i, y := range opts.Years {
		years[i] = strconv.Itoa(y)
	}
	for i, y := range f.Years {
		selectedYears[i] = strconv.Itoa(y)
	}
	return DashboardData{
		Regions:     controls(opts.Regions, f.Regions),
		Categories:  controls(opts.Categories, f.Categories),
		Years:       controls(years, selectedYears),
		DiscountMin: opts.DiscountMin,
		DiscountMax: opts.DiscountMax,
		Step:        sliderStep(opts.DiscountStep, f.Discount),
		Lo:          f.Discount.Lo,
		Hi:          f.Discount.Hi,
		Panels:      newPanelsData(v),
	}
}

func sliderStep(step float64, r analytics.Range) string {
	onGrid := func(v float64) bool {
		n := v / step
		return math.Abs(n-math.Round(n)) < 1e-9
	}
	if step <= 0 || !onGrid(r.Lo) || !onGrid(r.Hi) {
		return "any"
	}
	return strconv.FormatFloat(step, 'f', -1, 64)
}

func controls(values, selected []string) []control {
	out := make([]control, len(values))
	for i, v := range values {
		out[i] = control{Value: v, Selected: slices.Contains(selected, v)}
	}
	return out
}

func newPanelsData(v analytics.Views) PanelsData {
	q := FilterQuery(v.Filters).Encode()
	hasShare := false
	for _, s := range v.CategoryShare {
		if s.Fraction > 0 {
			hasShare = true
		}
	}
	has := map[charts.Kind]bool{
		charts.KindBar:     len(v.CategoryTotals) > 0,
		charts.KindScatter: len(v.ScatterRows) > 0,
		charts.KindTrend:   len(v.MonthlyTrend) > 0,
		charts.KindPie:     hasShare,
	}

	data := PanelsData{Views: v, Query: q, HeatColumns: v.Correlation.Columns}
	for _, k := range charts.Kinds {
		data.Charts = append(data.Charts, ChartPanel{
			Kind:    string(k),
			Title:   chartTitles[k],
			Src:     chartURL(k, q),
			HasData: has[k],
		})
	}
	for i, name := range v.Correlation.Columns {
		row := HeatRow{Name: name}
		for j := range v.Correlation.Columns {
			row.Cells = append(row.Cells, heatCell(v.Correlation.At(i, j)))
		}
		data.Heat = append(data.Heat, row)
	}
	return data
}

func chartURL(k charts.Kind, query string) string {
	u := url.URL{Path: "/charts/" + string(k) + "." + string(charts.FormatSVG), RawQuery: query}
	return u.String()
}

// heatCell buckets r into one of five shades per sign; undefined cells read
// "n/a".
func heatCell(r float64) HeatCell {
	if math.IsNaN(r) {
		return HeatCell{Label: "n/a", Class: "corr-na"}
	}
	bucket := int(math.Round(math.Abs(r) * 4))
	sign := "pos"
	if r < 0 {
		sign = "neg"
	}
	return HeatCell{
		Label: strconv.FormatFloat(r, 'f', 2, 64),
		Class: fmt.Sprintf("corr-%s-%d", sign, bucket),
	}
}
