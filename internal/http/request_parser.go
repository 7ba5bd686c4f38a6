// Package http serves the dashboard page, its HTMX partials, the JSON views
// API and rendered charts.
package http

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"superstore/internal/analytics"
	"superstore/internal/core"
)

// Query parameter names shared by the page, the partials and the API.
const (
	ParamRegion      = "region"
	ParamCategory    = "category"
	ParamYear        = "year"
	ParamDiscountMin = "discount_min"
	ParamDiscountMax = "discount_max"
)

// FilterIssue records a query value that was dropped or adjusted.
type FilterIssue struct {
	Param string
	Value string
	Fix   string
}

// ParseFilters builds analytics.Filters from query values. Each list
// parameter may repeat or carry comma-separated values. Malformed values are
// reported and the affected filter keeps its default; discount bounds are
// clamped to the control range.
func ParseFilters(q url.Values) (analytics.Filters, []FilterIssue) {
	f := analytics.DefaultFilters()
	var issues []FilterIssue

	f.Regions = listParam(q, ParamRegion)
	f.Categories = listParam(q, ParamCategory)

	if raw := listParam(q, ParamYear); len(raw) > 0 {
		years := make([]int, 0, len(raw))
		for _, v := range raw {
			y, err := strconv.Atoi(v)
			if err != nil {
				issues = append(issues, FilterIssue{Param: ParamYear, Value: v, Fix: "all years"})
				years = nil
				break
			}
			years = append(years, y)
		}
		f.Years = years
	}

	f.Discount.Lo, issues = discountParam(q, ParamDiscountMin, core.MinDiscount, issues)
	f.Discount.Hi, issues = discountParam(q, ParamDiscountMax, core.MaxDiscount, issues)

	return f.Normalize(), issues
}

func discountParam(q url.Values, name string, def float64, issues []FilterIssue) (float64, []FilterIssue) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, issues
	}
	d, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(d) {
		return def, append(issues, FilterIssue{Param: name, Value: v, Fix: strconv.FormatFloat(def, 'f', -1, 64)})
	}
	if d < core.MinDiscount || d > core.MaxDiscount {
		c := math.Min(math.Max(d, core.MinDiscount), core.MaxDiscount)
		return c, append(issues, FilterIssue{Param: name, Value: v, Fix: strconv.FormatFloat(c, 'f', -1, 64)})
	}
	return d, issues
}

func listParam(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// FilterQuery encodes f back into query parameters understood by
// ParseFilters. Default discount bounds are omitted.
func FilterQuery(f analytics.Filters) url.Values {
	n := f.Normalize()
	q := url.Values{}
	for _, r := range n.Regions {
		q.Add(ParamRegion, r)
	}
	for _, c := range n.Categories {
		q.Add(ParamCategory, c)
	}
	for _, y := range n.Years {
		q.Add(ParamYear, strconv.Itoa(y))
	}
	if n.Discount.Lo != core.MinDiscount {
		q.Set(ParamDiscountMin, strconv.FormatFloat(n.Discount.Lo, 'f', -1, 64))
	}
	if n.Discount.Hi != core.MaxDiscount {
		q.Set(ParamDiscountMax, strconv.FormatFloat(n.Discount.Hi, 'f', -1, 64))
	}
	return q
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
