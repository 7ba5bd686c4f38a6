// Package core provides the transaction domain model and value parsing.
//
// This file contains the parsers used by every dataset source to turn raw
// cell text into typed transaction fields.
package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order; the first one that parses wins.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"1/2/06",
	"2006/01/02",
	"2-Jan-2006",
	"02-Jan-06",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses an order date in any of the accepted layouts.
// The result is truncated to the date in UTC.
//
// Examples:
//
//	ParseDate("11/8/2016")  -> 2016-11-08
//	ParseDate("2016-11-08") -> 2016-11-08
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ParseAmount parses a currency value such as "261.96", "$1,044.63" or "-383.03".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseQuantity parses a positive integer quantity. Values such as "3.0"
// are accepted when they carry no fractional part.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	q, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, ErrInvalidQuantity
		}
		q = int(f)
	}
	if q <= 0 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// ParseDiscount parses a discount fraction in [0, 1]. A trailing percent sign
// divides by 100, so "20%" and "0.2" are equivalent.
func ParseDiscount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	if pct {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidDiscount
	}
	if pct {
		f /= 100
	}
	if f < 0 || f > 1 {
		return 0, ErrInvalidDiscount
	}
	return f, nil
}
