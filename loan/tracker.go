/*
Package loan tracks a loan's schedule against the payments made on it.

PURPOSE:
  The amortization package fixes the shape of a schedule. This package
  layers state on top of it: how much of each installment has been paid,
  which installments are overdue, what fines they carry, and what the loan
  and the whole portfolio look like on a given day.

STATE MACHINE (per installment):

    Pending --pay part--> PartiallyPaid --pay rest--> Paid
       |                        |
       +----due date passes-----+--> Overdue --pay all--> Paid
       |
       +--waive--> Skipped

  An Overdue installment stays Overdue until fully paid, fines included.
  Paid and Skipped are terminal.

PURITY:
  Every function here takes values and returns new values. Nothing reads
  the clock: the caller says what "today" is. Replaying the same payments
  over the same schedule always gives the same result.

ORDERING:
  Payments on one loan must be applied in date order. Replay sorts them;
  callers using ApplyToSchedule directly are responsible for the order.

SEE ALSO:
  - replay.go: Fold a payment history into a schedule
  - summary.go: Loan account summary
  - guide.go: Portfolio counters
  - fines.go: Fines policies
*/
package loan

import (
	"errors"
	"fmt"

	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/generic"
)

var (
	ErrNonPositivePayment = errors.New("payment amount must be positive")
	ErrPaymentScale       = errors.New("payment amount has fractions of a cent")
	ErrEntryNotFound      = errors.New("schedule entry not found")
	ErrEntrySettled       = errors.New("schedule entry already settled")
)

// =============================================================================
// PAYMENTS
// =============================================================================

// ApplyPayment applies amount to a single entry. The part of amount beyond
// what the entry owes is returned as remainder for the caller to carry to
// the next entry. A settled entry takes nothing and returns all of amount.
func ApplyPayment(e amortization.Entry, amount generic.Amount, paidAt generic.TimePoint) (amortization.Entry, generic.Amount, error) {
	if !amount.IsPositive() {
		return e, amount, fmt.Errorf("%w: got %s", ErrNonPositivePayment, amount)
	}
	if !amount.InScale() {
		return e, amount, fmt.Errorf("%w: got %s", ErrPaymentScale, amount.Value)
	}
	if e.Status.Settled() {
		return e, amount, nil
	}

	outstanding := e.Outstanding()
	applied := amount.Min(outstanding)
	if applied.IsNegative() {
		applied = applied.Zero()
	}
	remainder := amount.Sub(applied)

	e.Paid = e.Paid.Add(applied)
	e.Balance = e.Outstanding()
	e.LastPaymentDate = paidAt

	switch {
	case !e.Balance.IsPositive():
		e.Status = amortization.StatusPaid
	case e.Status == amortization.StatusOverdue:
		// stays overdue until cleared
	default:
		e.Status = amortization.StatusPartiallyPaid
	}
	return e, remainder, nil
}

// ApplyToSchedule applies amount across entries in sequence order, carrying
// each remainder forward. It returns updated entries and the overpayment
// left once every entry is settled.
func ApplyToSchedule(entries []amortization.Entry, amount generic.Amount, paidAt generic.TimePoint) ([]amortization.Entry, generic.Amount, error) {
	if !amount.IsPositive() {
		return entries, amount, fmt.Errorf("%w: got %s", ErrNonPositivePayment, amount)
	}
	if !amount.InScale() {
		return entries, amount, fmt.Errorf("%w: got %s", ErrPaymentScale, amount.Value)
	}

	out := make([]amortization.Entry, len(entries))
	copy(out, entries)

	remaining := amount
	for i := range out {
		if !remaining.IsPositive() {
			break
		}
		if out[i].Status.Settled() {
			continue
		}
		updated, rest, err := ApplyPayment(out[i], remaining, paidAt)
		if err != nil {
			return entries, amount, err
		}
		out[i] = updated
		remaining = rest
	}
	return out, remaining, nil
}

// =============================================================================
// CLOCK
// =============================================================================

// AdvanceClock marks every unsettled entry due before currentDate as
// Overdue and accrues its fines. Fines are recomputed from the unpaid
// amount due (excluding fines) and never decrease, so calling AdvanceClock
// again with the same or an earlier date changes nothing.
func AdvanceClock(entries []amortization.Entry, currentDate generic.TimePoint, fines FinesPolicy) []amortization.Entry {
	if fines == nil {
		fines = NoFines
	}

	out := make([]amortization.Entry, len(entries))
	copy(out, entries)

	for i := range out {
		e := &out[i]
		if e.Status.Settled() || !e.DueDate.Before(currentDate) {
			continue
		}
		if !e.Outstanding().IsPositive() {
			e.Status = amortization.StatusPaid
			e.Balance = e.Outstanding()
			continue
		}

		e.Status = amortization.StatusOverdue
		base := e.AmountDue.Sub(e.Paid)
		if base.IsNegative() {
			base = base.Zero()
		}
		accrued := fines(base, generic.DaysBetween(e.DueDate, currentDate)).Round()
		e.Fines = e.Fines.Max(accrued)
		e.Balance = e.Outstanding()
	}
	return out
}

// =============================================================================
// WAIVERS
// =============================================================================

// Waive marks the entry with the given sequence Skipped. Whatever was paid
// on it stays recorded; nothing more is owed.
func Waive(entries []amortization.Entry, sequence int) ([]amortization.Entry, error) {
	for i := range entries {
		if entries[i].Sequence != sequence {
			continue
		}
		if entries[i].Status.Settled() {
			return entries, fmt.Errorf("%w: installment %d is %s", ErrEntrySettled, sequence, entries[i].Status)
		}
		out := make([]amortization.Entry, len(entries))
		copy(out, entries)
		out[i].Status = amortization.StatusSkipped
		out[i].Balance = out[i].Balance.Zero()
		return out, nil
	}
	return entries, fmt.Errorf("%w: installment %d", ErrEntryNotFound, sequence)
}

// IsClientError reports whether err rejects the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNonPositivePayment) ||
		errors.Is(err, ErrPaymentScale) ||
		errors.Is(err, ErrEntrySettled)
}
