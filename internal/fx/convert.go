// Package fx converts amounts between currencies by bridging through a
// single reference currency. Conversion is pure: it takes a rate snapshot
// supplied by the caller and performs no I/O, so the same inputs always
// produce the same output.
package fx

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Lebim01/dotacasino-api-sub001/internal/domain"
)

// Snapshot maps each currency to the units of that currency per one unit
// of the reference currency. The reference currency itself has rate 1 and
// needs no map entry. A snapshot is valid for the request lifetime only.
type Snapshot struct {
	Reference domain.Currency
	Rates     map[domain.Currency]decimal.Decimal
}

// Rate returns the snapshot rate for c. Absent or non-positive rates fail
// with ErrMissingRate; a stale feed must not silently produce zeroes.
func (s Snapshot) Rate(c domain.Currency) (decimal.Decimal, error) {
	if c == s.Reference {
		return decimal.NewFromInt(1), nil
	}
	r, ok := s.Rates[c]
	if !ok || r.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("Rate: %s: %w", c, domain.ErrMissingRate)
	}
	return r, nil
}

// Convert bridges amount from one currency to another at full precision:
// amount / rate(from) * rate(to). No rounding is applied, so chained
// conversions do not accumulate rounding error.
func Convert(amount decimal.Decimal, from, to domain.Currency, rates Snapshot) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	fromRate, err := rates.Rate(from)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("Convert: %w", err)
	}
	toRate, err := rates.Rate(to)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("Convert: %w", err)
	}

	return amount.Div(fromRate).Mul(toRate), nil
}

// ConvertRounded converts like Convert and rounds the result half away
// from zero at the requested decimal count. The same-currency path still
// rounds, so output shape is consistent for every pair.
func ConvertRounded(amount decimal.Decimal, from, to domain.Currency, rates Snapshot, decimals int32) (decimal.Decimal, error) {
	result, err := Convert(amount, from, to, rates)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return result.Round(decimals), nil
}
