// Package currency converts caller-supplied amounts into the canonical
// currency using a rate table fetched from an exchange-rate provider.
package currency

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// RateProvider returns the conversion rates quoted against base.
// A rate r for unit U means 1 base == r U.
type RateProvider interface {
	FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// Normalize converts amount expressed in unit into the canonical currency.
// The canonical unit passes through untouched; any other unit is divided by
// its rate and rounded to cents, half away from zero.
func Normalize(amount decimal.Decimal, unit string, rates map[string]decimal.Decimal) (decimal.Decimal, error) {
	unit = core.NormalizeUnit(unit)
	if unit == core.CanonicalUnit {
		return amount, nil
	}
	rate, ok := rates[unit]
	if !ok {
		return decimal.Zero, fmt.Errorf("unit %q: %w", unit, core.ErrInvalidUnit)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("unit %q has rate %s: %w", unit, rate, core.ErrInvalidUnit)
	}
	return amount.DivRound(rate, core.MoneyPlaces), nil
}

// Normalizer fetches a fresh rate table for every non-canonical conversion.
type Normalizer struct {
	provider RateProvider
}

func NewNormalizer(provider RateProvider) *Normalizer {
	return &Normalizer{provider: provider}
}

// Normalize resolves (amount, unit) to the canonical currency. It never
// rejects a non-positive result; callers check positivity.
func (n *Normalizer) Normalize(ctx context.Context, amount decimal.Decimal, unit string) (decimal.Decimal, error) {
	unit = core.NormalizeUnit(unit)
	if unit == "" {
		return decimal.Zero, &core.ValidationError{Fields: []core.FieldError{{Path: "unit", Message: "Unit is required"}}}
	}
	if unit == core.CanonicalUnit {
		return amount, nil
	}

	rates, err := n.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return Normalize(amount, unit, rates)
}

// Rates fetches the current table quoted against the canonical unit.
func (n *Normalizer) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if n.provider == nil {
		return nil, fmt.Errorf("no rate provider configured: %w", core.ErrRateProviderUnavailable)
	}
	rates, err := n.provider.FetchRates(ctx, core.CanonicalUnit)
	if err != nil {
		if errors.Is(err, core.ErrRateProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrRateProviderUnavailable, err)
	}
	return rates, nil
}

// StaticRates is a fixed table, handy for tests and offline tooling.
type StaticRates map[string]decimal.Decimal

func (s StaticRates) FetchRates(_ context.Context, base string) (map[string]decimal.Decimal, error) {
	if core.NormalizeUnit(base) != core.CanonicalUnit {
		return nil, fmt.Errorf("static rates are quoted against %s, not %s: %w", core.CanonicalUnit, base, core.ErrRateProviderUnavailable)
	}
	return s, nil
}
