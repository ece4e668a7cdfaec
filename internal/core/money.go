// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and formatting cents for display with a trailing currency symbol.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount caps a single transaction so cent sums stay far from int64 overflow.
var maxAmount = decimal.New(1, 13)

// Exponent bounds accepted before rounding. Rescaling a decimal costs time and
// memory proportional to its exponent, so "1e999999999" must fail early.
const (
	maxExponent = 13
	minExponent = -20
)

// ParseAmount converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and ignores
// spaces used as thousands separators. Returns ErrInvalidAmount for empty,
// non-numeric, non-positive or out of range values.
//
// Examples:
//
//	ParseAmount("12.34")     -> {1234}, nil
//	ParseAmount("1 500,5")   -> {150050}, nil
//	ParseAmount("12.345")    -> {1235}, nil (rounds up)
//	ParseAmount("-5")        -> {}, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents and checks it is a valid positive amount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// FormatMoney renders cents with a space thousands separator, two decimals and
// a trailing currency symbol, e.g. "50 000.00 ₽".
func FormatMoney(m Money, symbol string) string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	fixed := decimal.New(cents, -2).StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	if symbol != "" {
		b.WriteByte(' ')
		b.WriteString(symbol)
	}
	return b.String()
}

// FormatSigned prefixes the formatted amount with + for income and - for expense.
func FormatSigned(tx Transaction, symbol string) string {
	if tx.Type == Income {
		return "+" + FormatMoney(tx.Amount, symbol)
	}
	return "-" + FormatMoney(tx.Amount, symbol)
}
