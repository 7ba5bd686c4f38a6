package analytics

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"superstore/internal/core"
)

// Range is a closed discount interval, inclusive at both ends.
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether v lies in [Lo, Hi].
func (r Range) Contains(v float64) bool { return v >= r.Lo && v <= r.Hi }

// Filters is one set of dashboard selections. An empty selection list means
// the dimension is not filtered.
type Filters struct {
	Regions    []string `json:"regions,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Years      []int    `json:"years,omitempty"`
	Discount   Range    `json:"discount"`
}

// DefaultFilters selects everything within the full discount control range.
func DefaultFilters() Filters {
	return Filters{Discount: Range{Lo: core.MinDiscount, Hi: core.MaxDiscount}}
}

// Normalize returns a canonical copy: selections sorted and de-duplicated,
// and a reversed discount range swapped.
func (f Filters) Normalize() Filters {
	out := Filters{
		Regions:    uniqueSorted(f.Regions),
		Categories: uniqueSorted(f.Categories),
		Discount:   f.Discount,
	}
	if len(f.Years) > 0 {
		out.Years = slices.Clone(f.Years)
		slices.Sort(out.Years)
		out.Years = slices.Compact(out.Years)
	}
	if out.Discount.Lo > out.Discount.Hi {
		out.Discount.Lo, out.Discount.Hi = out.Discount.Hi, out.Discount.Lo
	}
	return out
}

// labelEscaper keeps a label containing a separator distinct from two labels.
var labelEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `;`, `\;`)

func joinLabels(labels []string) string {
	escaped := make([]string, len(labels))
	for i, l := range labels {
		escaped[i] = labelEscaper.Replace(l)
	}
	return strings.Join(escaped, ",")
}

// String renders the canonical form, e.g. "r=East,West;c=;y=2016;d=0,0.5".
// Backslash, comma and semicolon inside labels are backslash-escaped.
func (f Filters) String() string {
	n := f.Normalize()
	var b strings.Builder
	b.WriteString("r=")
	b.WriteString(joinLabels(n.Regions))
	b.WriteString(";c=")
	b.WriteString(joinLabels(n.Categories))
	b.WriteString(";y=")
	for i, y := range n.Years {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(y))
	}
	b.WriteString(";d=")
	b.WriteString(strconv.FormatFloat(n.Discount.Lo, 'g', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(n.Discount.Hi, 'g', -1, 64))
	return b.String()
}

// Key hashes the canonical form. Filters selecting the same records in a
// different order share a key.
func (f Filters) Key() uint64 {
	return xxhash.Sum64String(f.String())
}

// matcher evaluates a normalized Filters against single transactions.
type matcher struct {
	regions    map[string]struct{}
	categories map[string]struct{}
	years      map[int]struct{}
	discount   Range
}

func newMatcher(f Filters) matcher {
	n := f.Normalize()
	m := matcher{discount: n.Discount}
	if len(n.Regions) > 0 {
		m.regions = toSet(n.Regions)
	}
	if len(n.Categories) > 0 {
		m.categories = toSet(n.Categories)
	}
	if len(n.Years) > 0 {
		m.years = make(map[int]struct{}, len(n.Years))
		for _, y := range n.Years {
			m.years[y] = struct{}{}
		}
	}
	return m
}

func (m matcher) match(tx core.Transaction) bool {
	if m.regions != nil {
		if _, ok := m.regions[tx.Region]; !ok {
			return false
		}
	}
	if m.categories != nil {
		if _, ok := m.categories[tx.Category]; !ok {
			return false
		}
	}
	if m.years != nil {
		if _, ok := m.years[tx.Year]; !ok {
			return false
		}
	}
	return m.discount.Contains(tx.Discount)
}

func toSet(vals []string) map[string]struct{} {
	s := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

func uniqueSorted(vals []string) []string {
	if len(vals) == 0 {
		return nil
	}
	out := slices.Clone(vals)
	slices.Sort(out)
	return slices.Compact(out)
}
