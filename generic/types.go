/*
Package generic provides the domain-agnostic core of the lending engine.

PURPOSE:
  This package contains the value types and algorithms every other package
  builds on: fixed-precision amounts, calendar time points, payment-mode
  frequencies, validated interval tables, and the append-only payment ledger.
  Nothing in here knows what a loan product or a cooperative member is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (currency or percent)
  - Unit: Decides the rounding scale (2 places for currency, 4 for percent)
  - Identifiers: Type-safe loan/payment/product IDs

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 for money
  2. Explicit rounding: Round() is called where an amount is finalized
     (an installment component, a fine), never implicitly
  3. Round-half-up: ties round away from zero (shopspring's Round)

USAGE:
  principal := generic.MustMoney("12000.00")
  rate := generic.MustPercent("12")
  monthly := principal.MulPercent(rate).Div(decimal.NewFromInt(12)).Round()
  // monthly = 120.00

SEE ALSO:
  - interval.go: TierTable built from Interval entries
  - frequency.go: PaymentMode enumeration
  - ledger.go: Payment persistence interface
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Decimal quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitCurrency Unit = "currency"
	UnitPercent  Unit = "percent"
)

// Scale returns the number of decimal places an amount of this unit is
// finalized to.
func (u Unit) Scale() int32 {
	if u == UnitPercent {
		return 4
	}
	return 2
}

var hundred = decimal.NewFromInt(100)

func NewAmount(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func Money(value decimal.Decimal) Amount   { return Amount{Value: value, Unit: UnitCurrency} }
func Percent(value decimal.Decimal) Amount { return Amount{Value: value, Unit: UnitPercent} }

func ZeroMoney() Amount   { return Money(decimal.Zero) }
func ZeroPercent() Amount { return Percent(decimal.Zero) }

// ParseAmount parses a decimal string into an Amount of the given unit.
func ParseAmount(s string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{Value: d, Unit: unit}, nil
}

// MustMoney parses a currency amount and panics on malformed input.
// Intended for presets and tests.
func MustMoney(s string) Amount {
	a, err := ParseAmount(s, UnitCurrency)
	if err != nil {
		panic(err)
	}
	return a
}

// MustPercent parses a percentage and panics on malformed input.
func MustPercent(s string) Amount {
	a, err := ParseAmount(s, UnitPercent)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Unit == b.Unit && a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MulPercent applies a percentage to the amount: a * p / 100.
// The result keeps a's unit and is not rounded.
func (a Amount) MulPercent(p Amount) Amount {
	return Amount{Value: a.Value.Mul(p.Value).Div(hundred), Unit: a.Unit}
}

// Round finalizes the amount to its unit scale, rounding half away from zero.
func (a Amount) Round() Amount {
	return Amount{Value: a.Value.Round(a.Unit.Scale()), Unit: a.Unit}
}

// InScale reports whether the value carries no digits beyond its unit
// scale: 10.50 and 10.500 are in scale for currency, 10.505 is not.
func (a Amount) InScale() bool {
	return a.Value.Equal(a.Value.Round(a.Unit.Scale()))
}

// String renders the value at the unit scale, e.g. "120.00" or "12.0000%".
func (a Amount) String() string {
	s := a.Value.StringFixed(a.Unit.Scale())
	if a.Unit == UnitPercent {
		return s + "%"
	}
	return s
}

// Sum adds amounts of a single unit. An empty input yields zero in unit.
func Sum(unit Unit, amounts ...Amount) Amount {
	total := Amount{Value: decimal.Zero, Unit: unit}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LoanID string
type PaymentID string
type ProductID string
