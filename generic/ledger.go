/*
ledger.go - Append-only payment log

PURPOSE:
  The Ledger is the immutable source of truth for money received against a
  loan. Every payment and every correction is recorded here. A schedule's
  paid amounts, balances and statuses are always derived by replaying these
  events over the generated schedule; nothing stores "amount paid" directly.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, payments cannot be modified
  3. IDEMPOTENT: Same idempotency key = same payment (no duplicates)
  4. POSITIVE: A payment event always carries a positive amount

CORRECTIONS:
  A payment recorded by mistake is not edited. Instead:
  1. Append a Reversal naming the original payment
  2. Both remain in the ledger
  3. Effective() drops the pair before the replay

EXAMPLE FLOW:
  1. Member pays 500.00 on Mar 1:    Payment  p1 +500.00
  2. Cashier typed the wrong loan:   Reversal r1 -> p1
  3. Payment re-entered on the loan: Payment  p2 +500.00 (other loan)

  Effective(loan) = [] ; Effective(other loan) = [p2]

SEE ALSO:
  - store.go: Low-level persistence interface
  - loan/replay.go: Folds effective payments into a schedule
*/
package generic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PAYMENT - One money event against a loan
// =============================================================================

type PaymentKind string

const (
	PaymentRegular  PaymentKind = "payment"
	PaymentReversal PaymentKind = "reversal"
)

type Payment struct {
	ID     PaymentID
	LoanID LoanID
	Kind   PaymentKind
	PaidAt TimePoint
	Amount Amount

	// ReversesID is set on reversals and names the payment being undone.
	ReversesID PaymentID

	// Reference is an opaque receipt or posting number from the caller.
	Reference      string
	IdempotencyKey string
	CreatedAt      time.Time
}

func NewPaymentID() PaymentID {
	return PaymentID(uuid.NewString())
}

func NewLoanID() LoanID {
	return LoanID(uuid.NewString())
}

// Validate checks the shape of a single event, without looking at history.
func (p Payment) Validate() error {
	if p.LoanID == "" {
		return fmt.Errorf("%w: loan id is required", ErrInvalidPayment)
	}
	switch p.Kind {
	case PaymentRegular:
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayment, p.Amount)
		}
		if p.Amount.Unit != UnitCurrency {
			return fmt.Errorf("%w: amount must be a currency amount", ErrInvalidPayment)
		}
		if !p.Amount.InScale() {
			return fmt.Errorf("%w: amount %s has fractions of a cent", ErrInvalidPayment, p.Amount.Value)
		}
	case PaymentReversal:
		if p.ReversesID == "" {
			return fmt.Errorf("%w: reversal must name the payment it reverses", ErrInvalidPayment)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayment, p.Kind)
	}
	if p.PaidAt.IsZero() {
		return fmt.Errorf("%w: payment date is required", ErrInvalidPayment)
	}
	return nil
}

// Effective returns the regular payments that have not been reversed, in
// ledger order.
func Effective(payments []Payment) []Payment {
	reversed := make(map[PaymentID]bool)
	for _, p := range payments {
		if p.Kind == PaymentReversal {
			reversed[p.ReversesID] = true
		}
	}
	var out []Payment
	for _, p := range payments {
		if p.Kind == PaymentRegular && !reversed[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// SortByPaidAt orders payments chronologically. Same-day payments keep
// their ledger order.
func SortByPaidAt(payments []Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].PaidAt.Before(payments[j].PaidAt)
	})
}

// =============================================================================
// LEDGER - Append-only payment log
// =============================================================================

// Ledger is the source of truth for payments.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete.
//   - Immutable: Once written, payments cannot be modified.
//
// Corrections are made via reversals, not edits.
type Ledger interface {
	// Append adds a payment or reversal. Fails if the idempotency key exists.
	Append(ctx context.Context, p Payment) error

	// Payments returns every event for the loan, ordered by PaidAt.
	Payments(ctx context.Context, loanID LoanID) ([]Payment, error)

	// PaymentsInPeriod returns events with PaidAt in the period.
	PaymentsInPeriod(ctx context.Context, loanID LoanID, period Period) ([]Payment, error)

	// TotalPaid sums effective payments made on or before asOf.
	TotalPaid(ctx context.Context, loanID LoanID, asOf TimePoint) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, p Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, p.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	if p.Kind == PaymentReversal {
		if err := l.checkReversible(ctx, p); err != nil {
			return err
		}
	}
	if p.ID == "" {
		p.ID = NewPaymentID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return l.Store.Append(ctx, p)
}

func (l *DefaultLedger) checkReversible(ctx context.Context, rev Payment) error {
	history, err := l.Store.Load(ctx, rev.LoanID)
	if err != nil {
		return err
	}
	found := false
	for _, p := range history {
		if p.Kind == PaymentRegular && p.ID == rev.ReversesID {
			found = true
		}
		if p.Kind == PaymentReversal && p.ReversesID == rev.ReversesID {
			return fmt.Errorf("%w: %s", ErrAlreadyReversed, rev.ReversesID)
		}
	}
	if !found {
		return fmt.Errorf("%w: %s on loan %s", ErrPaymentNotFound, rev.ReversesID, rev.LoanID)
	}
	return nil
}

func (l *DefaultLedger) Payments(ctx context.Context, loanID LoanID) ([]Payment, error) {
	return l.Store.Load(ctx, loanID)
}

func (l *DefaultLedger) PaymentsInPeriod(ctx context.Context, loanID LoanID, period Period) ([]Payment, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return l.Store.LoadRange(ctx, loanID, period.Start, period.End)
}

func (l *DefaultLedger) TotalPaid(ctx context.Context, loanID LoanID, asOf TimePoint) (Amount, error) {
	payments, err := l.Store.Load(ctx, loanID)
	if err != nil {
		return Amount{}, err
	}

	total := ZeroMoney()
	for _, p := range Effective(payments) {
		if p.PaidAt.After(asOf) {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total, nil
}
