package loan

import (
	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// LOAN ACCOUNT SUMMARY
// =============================================================================

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDefaulted Status = "defaulted"
)

// AccountSummary is derived from a tracked schedule; it is never stored.
type AccountSummary struct {
	LoanID generic.LoanID
	AsOf   generic.TimePoint

	TotalAmountDue generic.Amount
	AmountPaid     generic.Amount
	TotalFines     generic.Amount
	CurrentBalance generic.Amount
	OverdueAmount  generic.Amount

	NextDueDate generic.TimePoint
	DaysOverdue int

	Installments        int
	PaidInstallments    int
	OverdueInstallments int
	Status              Status
}

// Summarize aggregates tracked entries. DaysOverdue counts from the
// earliest overdue due date to asOf; the loan is Defaulted once that
// exceeds graceDays.
func Summarize(loanID generic.LoanID, entries []amortization.Entry, asOf generic.TimePoint, graceDays int) AccountSummary {
	s := AccountSummary{
		LoanID:         loanID,
		AsOf:           asOf,
		TotalAmountDue: generic.ZeroMoney(),
		AmountPaid:     generic.ZeroMoney(),
		TotalFines:     generic.ZeroMoney(),
		CurrentBalance: generic.ZeroMoney(),
		OverdueAmount:  generic.ZeroMoney(),
		Installments:   len(entries),
	}

	var earliestOverdue *amortization.Entry
	settled := 0
	for i := range entries {
		e := &entries[i]
		s.TotalAmountDue = s.TotalAmountDue.Add(e.AmountDue)
		s.AmountPaid = s.AmountPaid.Add(e.Paid)
		s.TotalFines = s.TotalFines.Add(e.Fines)

		if e.Status.Settled() {
			settled++
			if e.Status == amortization.StatusPaid {
				s.PaidInstallments++
			}
			continue
		}

		s.CurrentBalance = s.CurrentBalance.Add(e.Outstanding())
		if s.NextDueDate.IsZero() {
			s.NextDueDate = e.DueDate
		}
		if e.Status == amortization.StatusOverdue {
			s.OverdueInstallments++
			s.OverdueAmount = s.OverdueAmount.Add(e.Outstanding())
			if earliestOverdue == nil || e.DueDate.Before(earliestOverdue.DueDate) {
				earliestOverdue = e
			}
		}
	}

	if earliestOverdue != nil {
		s.DaysOverdue = generic.DaysBetween(earliestOverdue.DueDate, asOf)
		if s.DaysOverdue < 0 {
			s.DaysOverdue = 0
		}
	}

	switch {
	case settled == len(entries):
		s.Status = StatusCompleted
	case s.DaysOverdue > graceDays:
		s.Status = StatusDefaulted
	default:
		s.Status = StatusActive
	}
	return s
}
