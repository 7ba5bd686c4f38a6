package analytics

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"superstore/internal/core"
)

// Numeric fields correlated by the heatmap, in matrix order.
var CorrelationColumns = []string{"Sales", "Quantity", "Discount", "Profit"}

// Matrix is a square correlation matrix. Undefined cells are NaN.
type Matrix struct {
	Columns []string
	Values  [][]float64
}

// At returns the cell for columns i and j.
func (m Matrix) At(i, j int) float64 { return m.Values[i][j] }

// Defined reports whether cell (i, j) has a value.
func (m Matrix) Defined(i, j int) bool { return !math.IsNaN(m.Values[i][j]) }

// MarshalJSON encodes undefined cells as null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	cols, err := json.Marshal(m.Columns)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(`{"columns":`)
	b.Write(cols)
	b.WriteString(`,"values":[`)
	for i, row := range m.Values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				b.WriteString("null")
				continue
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte(']')
	}
	b.WriteString("]}")
	return b.Bytes(), nil
}

// Correlation computes the pairwise Pearson coefficients of sales, quantity,
// discount and profit over rows. Any cell involving a zero-variance column is
// NaN, including its diagonal; fewer than two rows leaves every cell NaN.
func Correlation(rows []core.Transaction) Matrix {
	n := len(CorrelationColumns)
	cols := make([][]float64, n)
	for i := range cols {
		cols[i] = make([]float64, len(rows))
	}
	for r, tx := range rows {
		cols[0][r] = tx.Sales.InexactFloat64()
		cols[1][r] = float64(tx.Quantity)
		cols[2][r] = tx.Discount
		cols[3][r] = tx.Profit.InexactFloat64()
	}

	m := Matrix{Columns: CorrelationColumns, Values: make([][]float64, n)}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
		for j := range m.Values[i] {
			m.Values[i][j] = math.NaN()
		}
	}
	if len(rows) < 2 {
		return m
	}

	varies := make([]bool, n)
	for i, c := range cols {
		varies[i] = !constant(c)
	}
	for i := 0; i < n; i++ {
		if !varies[i] {
			continue
		}
		m.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			if !varies[j] {
				continue
			}
			r := clamp(stat.Correlation(cols[i], cols[j], nil))
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// clamp keeps rounding noise from pushing a coefficient outside [-1, 1].
func clamp(r float64) float64 {
	switch {
	case math.IsNaN(r):
		return r
	case r > 1:
		return 1
	case r < -1:
		return -1
	}
	return r
}
