package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// KEYS - Projections of a loan used for tier lookup
// =============================================================================

// Key is implemented by AmountKey, DateKey and YearKey only.
type Key interface {
	Kind() generic.KeyKind
	isKey()
}

type AmountKey struct{ Amount decimal.Decimal }
type DateKey struct{ Date generic.TimePoint }

// YearKey is the 1-based year of the loan term.
type YearKey struct{ Year int }

func (AmountKey) Kind() generic.KeyKind { return generic.KeyAmount }
func (DateKey) Kind() generic.KeyKind   { return generic.KeyDate }
func (YearKey) Kind() generic.KeyKind   { return generic.KeyYear }

func (AmountKey) isKey() {}
func (DateKey) isKey()   {}
func (YearKey) isKey()   {}

// Projection carries every key a loan can be priced by.
type Projection struct {
	Amount decimal.Decimal
	Date   generic.TimePoint
	Year   int
}

// KeyFor returns the projection's key of the given kind.
func (p Projection) KeyFor(kind generic.KeyKind) (Key, error) {
	switch kind {
	case generic.KeyAmount:
		return AmountKey{Amount: p.Amount}, nil
	case generic.KeyDate:
		return DateKey{Date: p.Date}, nil
	case generic.KeyYear:
		return YearKey{Year: p.Year}, nil
	default:
		return nil, fmt.Errorf("unknown key kind %q", kind)
	}
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve returns the rate or charge ref yields for key. key is ignored by
// NoInterest, FixedRate and FlatCharge and may be nil for them.
func Resolve(ref RateReference, key Key) (generic.Amount, error) {
	switch r := ref.(type) {
	case NoInterest:
		return generic.ZeroPercent(), nil
	case FixedRate:
		return r.Rate, nil
	case FlatCharge:
		return r.Charge, nil
	case ByAmount:
		k, ok := key.(AmountKey)
		if !ok {
			return generic.Amount{}, mismatch(generic.KeyAmount, key)
		}
		return r.Table.Lookup(k.Amount)
	case ByDate:
		k, ok := key.(DateKey)
		if !ok {
			return generic.Amount{}, mismatch(generic.KeyDate, key)
		}
		return r.Table.Lookup(k.Date)
	case ByTermYear:
		k, ok := key.(YearKey)
		if !ok {
			return generic.Amount{}, mismatch(generic.KeyYear, key)
		}
		return r.Table.Lookup(k.Year)
	default:
		panic(fmt.Sprintf("pricing: unknown rate reference %T", ref))
	}
}

func mismatch(expected generic.KeyKind, got Key) error {
	var kind generic.KeyKind = "none"
	if got != nil {
		kind = got.Kind()
	}
	return &KeyTypeMismatchError{Expected: expected, Got: kind}
}

// ResolveFor projects p to the key ref expects and resolves it.
func ResolveFor(ref RateReference, p Projection) (generic.Amount, error) {
	kind, keyed := KeyKindOf(ref)
	if !keyed {
		return Resolve(ref, nil)
	}
	key, err := p.KeyFor(kind)
	if err != nil {
		return generic.Amount{}, err
	}
	return Resolve(ref, key)
}
