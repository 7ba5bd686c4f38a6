package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"11/8/2016", time.Date(2016, 11, 8, 0, 0, 0, 0, time.UTC), true},
		{"01/02/2017", time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"2015-06-09", time.Date(2015, 6, 9, 0, 0, 0, 0, time.UTC), true},
		{"6/9/15", time.Date(2015, 6, 9, 0, 0, 0, 0, time.UTC), true},
		{"9-Jun-2015", time.Date(2015, 6, 9, 0, 0, 0, 0, time.UTC), true},
		{" 2014-12-31 ", time.Date(2014, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"2014-12-31T18:30:00Z", time.Date(2014, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"13/45/2016", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidDate, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.True(t, tc.want.Equal(got), "input %q: got %v want %v", tc.in, got, tc.want)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"261.96", "261.96", true},
		{"-383.031", "-383.031", true},
		{"$1,044.63", "1044.63", true},
		{"- $5", "-5", true},
		{"0", "0", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidNumber, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got.String(), "input %q", tc.in)
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("3")
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	q, err = ParseQuantity("2.0")
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	for _, bad := range []string{"0", "-1", "1.5", "x", ""} {
		_, err := ParseQuantity(bad)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "input %q", bad)
	}
}

func TestParseDiscount(t *testing.T) {
	d, err := ParseDiscount("0.2")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, d, 1e-12)

	d, err = ParseDiscount("45%")
	require.NoError(t, err)
	assert.InDelta(t, 0.45, d, 1e-12)

	for _, bad := range []string{"-0.1", "1.5", "abc", ""} {
		_, err := ParseDiscount(bad)
		assert.ErrorIs(t, err, ErrInvalidDiscount, "input %q", bad)
	}
}

func TestErrorKinds(t *testing.T) {
	var err error = &ParseError{Source: "x.csv", Row: 3, Line: 4, Column: ColOrderDate, Value: "??", Err: ErrInvalidDate}
	assert.True(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, ErrInvalidDate))
	assert.Contains(t, err.Error(), "row 3 (line 4)")
	assert.Contains(t, err.Error(), `"Order Date"`)

	err = &SchemaError{Source: "x.csv", Missing: []string{ColSales, ColProfit}}
	assert.True(t, errors.Is(err, ErrSchema))
	assert.False(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "Sales, Profit")

	err = &LoadError{Source: "x.csv", Err: errors.New("boom")}
	assert.True(t, errors.Is(err, ErrLoad))
	assert.Equal(t, "load x.csv: boom", err.Error())
}

func TestMonthOrderingAndFormat(t *testing.T) {
	a := Month{Year: 2016, Month: time.December}
	b := Month{Year: 2017, Month: time.January}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
	assert.Equal(t, "2016-12", a.String())
	assert.Equal(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), b.Start())

	tx := NewTransaction(time.Date(2015, 3, 14, 0, 0, 0, 0, time.UTC), "West", "Tech", "Phone", decimal.RequireFromString("10"), 1, 0, decimal.RequireFromString("1"))
	assert.Equal(t, 2015, tx.Year)
	assert.Equal(t, Month{Year: 2015, Month: time.March}, tx.Month())
}
