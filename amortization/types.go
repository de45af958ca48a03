/*
Package amortization generates installment schedules for loans.

PURPOSE:
  Given a principal, a term, a payment mode, an annual rate and a start
  date, Generate produces the ordered list of installments the borrower
  owes. The shape of a schedule (due dates, principal, interest) is fixed
  at generation. What has been paid, fines and status are derived later
  by the loan package from payment events.

METHOD:
  Level principal with reducing-balance interest.

    principal_i = round(P / n)            for i < n
    principal_n = P - sum(principal_1..n-1)
    interest_i  = round(balance_i * rate / 100 / periodsPerYear)

  balance_i is the principal still outstanding at the start of period i.
  A lump-sum loan has one installment: the full principal plus simple
  interest for the whole term (P * rate / 100 * term / 12).

INSTALLMENT COUNT AND SPACING:
  Mode          Count              Due date of installment i
  daily         days in term       start + i days
  weekly        days in term / 7   start + 7i days
  semi-monthly  2 * term           alternating +15 days / next month
  monthly       term               start + i months
  quarterly     term / 3           start + 3i months
  semi-annual   term / 6           start + 6i months
  lump-sum      1                  start + term months

  Month arithmetic is always from the start date and clamps to month end,
  so a loan started on Jan 31 falls due Feb 28, Mar 31, Apr 30.

DETERMINISM:
  Generate reads no clock and has no randomness. The same Terms always
  produce the same Schedule.

SEE ALSO:
  - loan/tracker.go: Payment, overdue and fines state on top of a schedule
  - pricing/resolver.go: Where the annual rate comes from
*/
package amortization

import (
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// TERMS - Generator input
// =============================================================================

type Terms struct {
	Principal generic.Amount
	// Term is the loan length in months.
	Term int
	Mode generic.PaymentMode
	// Rate is the annual interest rate as a percentage.
	Rate      generic.Amount
	StartDate generic.TimePoint
}

// =============================================================================
// ENTRY - One installment
// =============================================================================

type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusSkipped       Status = "skipped"
)

// Settled reports whether nothing more is owed on an entry in this status.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusSkipped
}

// Entry is one installment. The first block is fixed at generation; the
// second is derived by the tracker.
type Entry struct {
	Sequence           int
	PeriodStart        generic.TimePoint
	DueDate            generic.TimePoint
	Principal          generic.Amount
	Interest           generic.Amount
	AmountDue          generic.Amount
	RemainingPrincipal generic.Amount

	Fines           generic.Amount
	Paid            generic.Amount
	Balance         generic.Amount
	Status          Status
	LastPaymentDate generic.TimePoint
}

// Outstanding is what is still owed: amount due plus fines minus paid.
func (e Entry) Outstanding() generic.Amount {
	return e.AmountDue.Add(e.Fines).Sub(e.Paid)
}

// =============================================================================
// SCHEDULE
// =============================================================================

type Schedule struct {
	Terms          Terms
	Entries        []Entry
	TotalPrincipal generic.Amount
	TotalInterest  generic.Amount
	TotalDue       generic.Amount
}

// Clone returns a schedule whose Entries can be modified without affecting s.
func (s Schedule) Clone() Schedule {
	out := s
	out.Entries = make([]Entry, len(s.Entries))
	copy(out.Entries, s.Entries)
	return out
}

// MaturityDate is the due date of the last installment.
func (s Schedule) MaturityDate() generic.TimePoint {
	if len(s.Entries) == 0 {
		return generic.TimePoint{}
	}
	return s.Entries[len(s.Entries)-1].DueDate
}
