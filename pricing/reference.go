/*
Package pricing decides which single rate or charge applies to a loan.

PURPOSE:
  A loan product is priced in exactly one way: no interest, a fixed annual
  rate, a flat charge, or a tier table keyed by principal amount, by date,
  or by the year of the term. This package models that choice as a closed
  set of variants and resolves a variant to a value for a given key.

KEY CONCEPTS:
  RateReference: Sealed interface, one implementation per pricing mode
  Key:           The lookup key, projected from the loan (amount, date, year)
  ChargesMatrix: Amount range x payment mode table of service charges

CONSTRUCTION vs RESOLUTION:
  NewReference validates the configuration once, when it is saved. A fixed
  rate together with a flat charge, or any two pricing modes together, is
  rejected there with *MutuallyExclusivePricingError. Resolve never
  re-validates; it only looks up.

USAGE:
  tiers, _ := generic.NewAmountTiers(entries)
  ref, err := pricing.NewReference(pricing.ReferenceConfig{AmountTiers: tiers})
  rate, err := pricing.Resolve(ref, pricing.AmountKey{Amount: principal})

SEE ALSO:
  - generic/interval.go: Tier tables
  - factory/pricing.go: Builds references from stored JSON
*/
package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// RATE REFERENCE - Closed set of pricing modes
// =============================================================================

// RateReference is implemented only by the variants in this file.
type RateReference interface {
	// Mode is the stable name of the variant, as stored in configuration.
	Mode() string
	isRateReference()
}

const (
	ModeNone       = "none"
	ModeFixedRate  = "fixed_rate"
	ModeFlatCharge = "flat_charge"
	ModeByAmount   = "by_amount"
	ModeByDate     = "by_date"
	ModeByTermYear = "by_term_year"
)

// NoInterest resolves to a zero rate.
type NoInterest struct{}

// FixedRate resolves to Rate regardless of key.
type FixedRate struct {
	Rate generic.Amount
}

// FlatCharge resolves to Charge regardless of key.
type FlatCharge struct {
	Charge generic.Amount
}

type ByAmount struct {
	Table *generic.TierTable[decimal.Decimal, generic.Amount]
}

type ByDate struct {
	Table *generic.TierTable[generic.TimePoint, generic.Amount]
}

type ByTermYear struct {
	Table *generic.TierTable[int, generic.Amount]
}

func (NoInterest) Mode() string { return ModeNone }
func (FixedRate) Mode() string  { return ModeFixedRate }
func (FlatCharge) Mode() string { return ModeFlatCharge }
func (ByAmount) Mode() string   { return ModeByAmount }
func (ByDate) Mode() string     { return ModeByDate }
func (ByTermYear) Mode() string { return ModeByTermYear }

func (NoInterest) isRateReference() {}
func (FixedRate) isRateReference()  {}
func (FlatCharge) isRateReference() {}
func (ByAmount) isRateReference()   {}
func (ByDate) isRateReference()     {}
func (ByTermYear) isRateReference() {}

// KeyKindOf returns the key projection a reference is resolved with, and
// false for the variants that ignore the key.
func KeyKindOf(ref RateReference) (generic.KeyKind, bool) {
	switch ref.(type) {
	case ByAmount:
		return generic.KeyAmount, true
	case ByDate:
		return generic.KeyDate, true
	case ByTermYear:
		return generic.KeyYear, true
	default:
		return "", false
	}
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// ReferenceConfig is the flat record a product is configured with. Zero
// values and nil tables mean "not set".
type ReferenceConfig struct {
	FixedRate   decimal.Decimal
	FlatCharge  decimal.Decimal
	AmountTiers *generic.TierTable[decimal.Decimal, generic.Amount]
	DateTiers   *generic.TierTable[generic.TimePoint, generic.Amount]
	YearTiers   *generic.TierTable[int, generic.Amount]
}

// NewReference turns a configuration record into its single variant.
// No mode set yields NoInterest.
func NewReference(cfg ReferenceConfig) (RateReference, error) {
	if cfg.FixedRate.IsNegative() {
		return nil, &NegativeValueError{Field: "fixed rate", Value: cfg.FixedRate.String()}
	}
	if cfg.FlatCharge.IsNegative() {
		return nil, &NegativeValueError{Field: "flat charge", Value: cfg.FlatCharge.String()}
	}
	if charge := generic.Money(cfg.FlatCharge); !charge.InScale() {
		return nil, &ScaleError{Field: "flat charge", Value: cfg.FlatCharge.String(), Scale: generic.UnitCurrency.Scale()}
	}

	var populated []string
	if cfg.FixedRate.IsPositive() {
		populated = append(populated, ModeFixedRate)
	}
	if cfg.FlatCharge.IsPositive() {
		populated = append(populated, ModeFlatCharge)
	}
	if cfg.AmountTiers != nil {
		populated = append(populated, ModeByAmount)
	}
	if cfg.DateTiers != nil {
		populated = append(populated, ModeByDate)
	}
	if cfg.YearTiers != nil {
		populated = append(populated, ModeByTermYear)
	}
	if len(populated) > 1 {
		return nil, &MutuallyExclusivePricingError{Populated: populated}
	}
	if len(populated) == 0 {
		return NoInterest{}, nil
	}

	switch populated[0] {
	case ModeFixedRate:
		return FixedRate{Rate: generic.Percent(cfg.FixedRate)}, nil
	case ModeFlatCharge:
		return FlatCharge{Charge: generic.Money(cfg.FlatCharge)}, nil
	case ModeByAmount:
		return ByAmount{Table: cfg.AmountTiers}, nil
	case ModeByDate:
		return ByDate{Table: cfg.DateTiers}, nil
	default:
		return ByTermYear{Table: cfg.YearTiers}, nil
	}
}
