/*
Package money provides fixed-precision currency arithmetic.

PURPOSE:
  Every monetary value in the system flows through this package. Money is
  stored as integer cents internally, so repeated additions never accumulate
  binary floating-point error. Dollar (major-unit) values exist only at I/O
  boundaries: JSON payloads, database columns, and display strings.

KEY RULES:
  1. Direct + / * on float dollar values is a correctness bug.
  2. Multiplication by a quantity (hours, weeks, sessions) goes through
     MulDecimal, which rounds half-away-from-zero to the cent.
  3. Sum() is the only sanctioned way to total a list of amounts.

USAGE:
  rate := money.FromDollars(42.50)
  total := rate.MulDecimal(decimal.NewFromFloat(3.25)) // $138.13
  grand := money.Sum(total, money.FromDollars(100))

SEE ALSO:
  - invoicing: line item amounts and invoice totals
  - payroll: line item pay calculation
*/
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer cents with dollar conversion at the edges
// =============================================================================

// Money is a currency amount in integer cents.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

var hundred = decimal.NewFromInt(100)

// FromCents builds a Money from an integer cent count.
func FromCents(cents int64) Money { return Money(cents) }

// FromDollars builds a Money from a major-unit value, rounding
// half-away-from-zero to the cent.
func FromDollars(dollars float64) Money {
	return FromDecimal(decimal.NewFromFloat(dollars))
}

// FromDecimal builds a Money from a decimal dollar value, rounding
// half-away-from-zero to the cent.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 { return int64(m) }

// Dollars returns the major-unit value. For display and JSON only.
func (m Money) Dollars() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// Decimal returns the dollar value as a decimal (2 decimal places).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }

// =============================================================================
// ARITHMETIC
// =============================================================================

func (m Money) Add(other Money) Money { return m + other }
func (m Money) Sub(other Money) Money { return m - other }
func (m Money) Neg() Money            { return -m }

// MulDecimal multiplies by a quantity and rounds half-away-from-zero to
// the cent. This is the hours-times-rate operation.
func (m Money) MulDecimal(qty decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(qty).Round(0).IntPart())
}

// MulInt multiplies by an integer quantity (sessions, weeks).
func (m Money) MulInt(n int) Money { return m * Money(n) }

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Sum totals any number of amounts without intermediate rounding.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// =============================================================================
// FORMATTING / JSON
// =============================================================================

// String formats as a dollar amount, e.g. "$12.34" or "-$0.50".
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON encodes as a 2-decimal dollar number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a dollar number (e.g. 12.34).
func (m *Money) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid money value %q: %w", data, err)
	}
	*m = FromDecimal(d)
	return nil
}
