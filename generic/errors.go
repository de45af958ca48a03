/*
errors.go - Centralized error types for the generic engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (pricing, amortization, loan) wrap these errors with
  additional context or define their own structured errors that unwrap
  to a sentinel the same way.

ERROR CATEGORIES:
  1. Tier table errors - Invalid ranges, overlaps, missing tiers
  2. Ledger errors - Payment persistence failures
  3. Lookup errors - Missing loans or configuration records

USAGE:
  Callers branch on the sentinel, never on the message:

    if errors.Is(err, generic.ErrNoMatchingTier) {
        // the amount falls in a gap of the configured table
    }

  Callers needing the details use errors.As:

    var overlap *generic.OverlapError
    if errors.As(err, &overlap) {
        log.Printf("entries %d and %d overlap", overlap.First.Index, overlap.Second.Index)
    }

SEE ALSO:
  - interval.go: Raises the tier table errors
  - ledger.go: Raises the ledger errors
  - pricing/errors.go: Resolver and charges matrix errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a tier entry has From >= To.
	ErrInvalidRange = errors.New("invalid range")

	// ErrOverlap is returned when two tier entries share at least one key.
	ErrOverlap = errors.New("overlapping tiers")

	// ErrNoMatchingTier is returned when a key falls outside every tier.
	// A lookup never falls back to a default.
	ErrNoMatchingTier = errors.New("no matching tier")

	// ErrUnknownPaymentMode is returned for a mode outside the enumeration.
	ErrUnknownPaymentMode = errors.New("unknown payment mode")

	// ErrDuplicateIdempotencyKey is returned when a payment with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidPayment is returned when a payment event is malformed.
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrPaymentNotFound is returned when a reversal names an unknown payment.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAlreadyReversed is returned when a payment is reversed twice.
	ErrAlreadyReversed = errors.New("payment already reversed")

	// ErrTransactionFailed is returned when a payment cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrLoanNotFound is returned when a referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrPricingNotFound is returned when a referenced pricing configuration doesn't exist.
	ErrPricingNotFound = errors.New("pricing configuration not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TierRef identifies a tier entry in error messages: its position in the
// caller's input (before sorting) and its bounds rendered as text.
type TierRef struct {
	Index int
	From  string
	To    string
}

func (r TierRef) String() string {
	return fmt.Sprintf("#%d [%s, %s)", r.Index, r.From, r.To)
}

// InvalidRangeError reports an entry whose lower bound is not below its upper bound.
type InvalidRangeError struct {
	Kind  KeyKind
	Entry TierRef
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid %s range: entry %s must have from < to", e.Kind, e.Entry)
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// OverlapError names both conflicting entries.
type OverlapError struct {
	Kind   KeyKind
	First  TierRef
	Second TierRef
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping %s tiers: entry %s overlaps entry %s", e.Kind, e.First, e.Second)
}

func (e *OverlapError) Unwrap() error {
	return ErrOverlap
}

// NoMatchingTierError reports the key that fell into a gap.
type NoMatchingTierError struct {
	Kind KeyKind
	Key  string
}

func (e *NoMatchingTierError) Error() string {
	return fmt.Sprintf("no %s tier contains %s", e.Kind, e.Key)
}

func (e *NoMatchingTierError) Unwrap() error {
	return ErrNoMatchingTier
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrNoMatchingTier) ||
		errors.Is(err, ErrUnknownPaymentMode) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the write was rejected because it already happened.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrAlreadyReversed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrPricingNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
