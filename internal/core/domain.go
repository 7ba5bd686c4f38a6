package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Column names expected in the source table.
const (
	ColOrderDate   = "Order Date"
	ColRegion      = "Region"
	ColCategory    = "Category"
	ColProductName = "Product Name"
	ColSales       = "Sales"
	ColQuantity    = "Quantity"
	ColDiscount    = "Discount"
	ColProfit      = "Profit"
)

// RequiredColumns lists every column a source must provide, in canonical order.
var RequiredColumns = []string{
	ColOrderDate,
	ColRegion,
	ColCategory,
	ColProductName,
	ColSales,
	ColQuantity,
	ColDiscount,
	ColProfit,
}

// Discount bounds selectable from the dashboard.
const (
	MinDiscount  = 0.0
	MaxDiscount  = 0.8
	DiscountStep = 0.1
)

type (
	// Transaction is a single order line of the superstore dataset.
	Transaction struct {
		OrderDate   time.Time
		Year        int // derived from OrderDate
		Region      string
		Category    string
		ProductName string
		Sales       decimal.Decimal
		Quantity    int
		Discount    float64
		Profit      decimal.Decimal
	}

	// Month identifies a calendar month bucket.
	Month struct {
		Year  int
		Month time.Month
	}
)

// NewTransaction builds a transaction and derives its order year.
func NewTransaction(date time.Time, region, category, product string, sales decimal.Decimal, qty int, discount float64, profit decimal.Decimal) Transaction {
	return Transaction{
		OrderDate:   date,
		Year:        date.Year(),
		Region:      region,
		Category:    category,
		ProductName: product,
		Sales:       sales,
		Quantity:    qty,
		Discount:    discount,
		Profit:      profit,
	}
}

// Month returns the calendar month bucket of the order date.
func (t Transaction) Month() Month {
	return MonthOf(t.OrderDate)
}

// MonthOf returns the month bucket for a date.
func MonthOf(d time.Time) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

// Before reports whether m is chronologically earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText encodes the month as YYYY-MM.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
