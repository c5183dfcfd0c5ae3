// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and formatting decimal amounts for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits kept for stored amounts.
const AmountScale = 2

// ParseAmount converts a decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two fractional digits. Signs, empty input, garbage and amounts that
// round to zero are rejected with a ValidationError on "amount".
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("0.004")  -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	invalid := &ValidationError{Field: "amount", Err: ErrInvalidAmount}

	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, invalid
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, invalid
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, invalid
		}
	}
	if s == "." {
		return decimal.Zero, invalid
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid
	}
	d = d.Round(AmountScale)
	if !d.IsPositive() {
		return decimal.Zero, invalid
	}
	return d, nil
}

// FormatAmount renders an amount with two fractional digits, e.g. "-12.50".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
