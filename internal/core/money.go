// Package core holds the ledger domain: accounts with their entries,
// transactions, categories and the money helpers they share.
//
// All amounts are shopspring decimals expressed in the canonical currency
// once they have been normalized. Nothing in this package performs I/O.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CanonicalUnit is the currency every stored amount is expressed in.
const CanonicalUnit = "USD"

// MoneyPlaces is the number of fractional digits kept after conversion.
const MoneyPlaces = 2

// MinInputAmount is the smallest raw amount a caller may submit.
var MinInputAmount = decimal.New(1, -MoneyPlaces)

// Bounds on what ParseAmount accepts. Anything outside them is not a sum
// of money, and comparing it against other amounts would rescale it into
// an arbitrarily large integer.
const (
	maxAmountLen      = 64
	minAmountExponent = -12
	maxAmountExponent = 15
	maxAmountDigits   = 28
	maxIntegerDigits  = 15
)

// ParseAmount converts user input into a decimal.
//
// Both dot (12.34) and comma (12,34) separators are accepted. The sign is
// preserved: positivity is the caller's business.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("1.2.3")  -> error
//	ParseAmount("1e200")  -> error, out of range
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount: %w", ErrValidation)
	}
	if len(s) > maxAmountLen {
		return decimal.Zero, fmt.Errorf("amount longer than %d characters: %w", maxAmountLen, ErrValidation)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, ErrValidation)
	}
	if err := checkAmountRange(d); err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}

func checkAmountRange(d decimal.Decimal) error {
	exp := int(d.Exponent())
	if exp < minAmountExponent || exp > maxAmountExponent {
		return fmt.Errorf("exponent %d out of range: %w", exp, ErrValidation)
	}
	if d.IsZero() {
		return nil
	}
	digits := d.NumDigits()
	if digits > maxAmountDigits || digits+exp > maxIntegerDigits {
		return fmt.Errorf("too many digits: %w", ErrValidation)
	}
	return nil
}

// FormatAmount renders d with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// NormalizeUnit trims and upper-cases a currency code.
func NormalizeUnit(unit string) string {
	return strings.ToUpper(strings.TrimSpace(unit))
}

// SumAmounts adds up a list of decimals.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
