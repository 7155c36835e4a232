// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer centavos. Parsing and formatting go through
// shopspring/decimal so that user input never touches binary floating point.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds a single entry; running totals are guarded by
// Money.CheckedAdd and Money.CheckedSub.
var maxAmount = decimal.New(1, 15)

// ParseAmount converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. The
// result is always positive; signs, zero, garbage and absurd magnitudes are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("150")    -> 15000
//	ParseAmount("12,34")  -> 1234
//	ParseAmount("12.345") -> 1235 (half-up)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// MoneyFromDecimal rounds half-up to centavos.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders m with two fixed decimals, e.g. "850.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the value as float64 for chart rendering only.
// Use Cents for arithmetic.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}
