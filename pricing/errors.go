package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	ErrKeyTypeMismatch          = errors.New("key type mismatch")
	ErrMutuallyExclusivePricing = errors.New("mutually exclusive pricing")
	ErrColumnCount              = errors.New("wrong column count")
	ErrNegativeValue            = errors.New("negative value")
	ErrScale                    = errors.New("too many decimal places")
	ErrDuplicateColumn          = errors.New("duplicate charges column")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// KeyTypeMismatchError is returned when a tiered reference is resolved with a
// key of a different projection (a date key against an amount table).
type KeyTypeMismatchError struct {
	Expected generic.KeyKind
	Got      generic.KeyKind
}

func (e *KeyTypeMismatchError) Error() string {
	return fmt.Sprintf("reference is keyed by %s, got a %s key", e.Expected, e.Got)
}

func (e *KeyTypeMismatchError) Unwrap() error { return ErrKeyTypeMismatch }

// MutuallyExclusivePricingError lists every pricing mode a configuration
// populated when at most one is allowed.
type MutuallyExclusivePricingError struct {
	Populated []string
}

func (e *MutuallyExclusivePricingError) Error() string {
	return fmt.Sprintf("only one pricing mode may be set, got %s", strings.Join(e.Populated, " and "))
}

func (e *MutuallyExclusivePricingError) Unwrap() error { return ErrMutuallyExclusivePricing }

// ColumnCountError is returned when a charges row doesn't have one cell per payment mode.
type ColumnCountError struct {
	Row  int
	Got  int
	Want int
}

func (e *ColumnCountError) Error() string {
	return fmt.Sprintf("charges row %d has %d columns, want %d", e.Row, e.Got, e.Want)
}

func (e *ColumnCountError) Unwrap() error { return ErrColumnCount }

type NegativeValueError struct {
	Field string
	Value string
}

func (e *NegativeValueError) Error() string {
	return fmt.Sprintf("%s must not be negative, got %s", e.Field, e.Value)
}

func (e *NegativeValueError) Unwrap() error { return ErrNegativeValue }

// ScaleError is returned for a configured value finer than its unit allows:
// a currency charge of 10.505 or a percentage of 1.23456.
type ScaleError struct {
	Field string
	Value string
	Scale int32
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("%s allows %d decimal places, got %s", e.Field, e.Scale, e.Value)
}

func (e *ScaleError) Unwrap() error { return ErrScale }

// DuplicateColumnError is returned when two names in one charges row
// denote the same payment mode, e.g. "semi-monthly" and "semi_monthly".
type DuplicateColumnError struct {
	Row   int
	Mode  generic.PaymentMode
	Names []string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("charges row %d sets %s more than once (%s)", e.Row, e.Mode, strings.Join(e.Names, ", "))
}

func (e *DuplicateColumnError) Unwrap() error { return ErrDuplicateColumn }

// IsConfigError reports whether err comes from validating a pricing
// configuration, as opposed to resolving against one.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMutuallyExclusivePricing) ||
		errors.Is(err, ErrColumnCount) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrScale) ||
		errors.Is(err, ErrDuplicateColumn) ||
		errors.Is(err, generic.ErrInvalidRange) ||
		errors.Is(err, generic.ErrOverlap)
}
