package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integral minor units
// =============================================================================

// Money is an amount in minor currency units (cents). All engine arithmetic
// happens on this type; decimal is only used at the text boundary.
type Money int64

// MinorUnitExponent is the number of decimal places of the currency.
const MinorUnitExponent = 2

func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsZero() bool     { return m == 0 }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m < o {
		return m
	}
	return o
}

// Decimal returns m in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorUnitExponent)
}

// String formats m in major units with a fixed number of decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitExponent)
}

// ParseMoney parses a major-unit amount such as "1250.50" into Money.
// Fractions of a minor unit are rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a major-unit decimal into Money.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(MinorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has fractional minor units", ErrInvalidAmount, d.String())
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return Money(minor.IntPart()), nil
}

// Add returns m+o. A result outside the int64 range is ErrInvalidAmount,
// never a wrapped value.
func (m Money) Add(o Money) (Money, error) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, fmt.Errorf("%w: %s + %s overflows", ErrInvalidAmount, m, o)
	}
	return m + o, nil
}

// Sum adds a list of amounts with overflow checking.
func Sum(amounts ...Money) (Money, error) {
	var total Money
	for _, a := range amounts {
		next, err := total.Add(a)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
