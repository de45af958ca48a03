package loan

import (
	"fmt"

	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// REPLAY - Schedule state from payment history
// =============================================================================

// Policy holds the externally supplied rules the tracker applies.
type Policy struct {
	GraceDays int
	Fines     FinesPolicy
}

// History is what has happened to a loan since its schedule was generated.
type History struct {
	// Payments may include reversals; only effective payments are applied.
	Payments []generic.Payment
	// Waived lists installment sequence numbers that are not owed.
	Waived []int
}

// Replay folds h into a copy of s as of asOf. Payments dated after asOf
// are ignored. Before each payment the clock is advanced to its date, so an
// installment paid late is fined for the days it was late; finally the
// clock is advanced to asOf.
func Replay(s amortization.Schedule, h History, asOf generic.TimePoint, fines FinesPolicy) (amortization.Schedule, generic.Amount, error) {
	out := s.Clone()
	overpayment := generic.ZeroMoney()

	var err error
	for _, seq := range h.Waived {
		out.Entries, err = Waive(out.Entries, seq)
		if err != nil {
			return s, overpayment, fmt.Errorf("waiver: %w", err)
		}
	}

	payments := generic.Effective(h.Payments)
	generic.SortByPaidAt(payments)

	for _, p := range payments {
		if p.PaidAt.After(asOf) {
			break
		}
		out.Entries = AdvanceClock(out.Entries, p.PaidAt, fines)

		var rest generic.Amount
		out.Entries, rest, err = ApplyToSchedule(out.Entries, p.Amount, p.PaidAt)
		if err != nil {
			return s, overpayment, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		overpayment = overpayment.Add(rest)
	}

	out.Entries = AdvanceClock(out.Entries, asOf, fines)
	return out, overpayment, nil
}

// =============================================================================
// ACCOUNT - Everything needed to evaluate one loan
// =============================================================================

type Account struct {
	ID       generic.LoanID
	Schedule amortization.Schedule
	History  History
}

// Evaluation is an account's tracked schedule and summary on one day.
type Evaluation struct {
	Schedule    amortization.Schedule
	Summary     AccountSummary
	Overpayment generic.Amount
}

// Evaluate replays the account's history and summarizes the result.
func Evaluate(a Account, asOf generic.TimePoint, p Policy) (Evaluation, error) {
	tracked, over, err := Replay(a.Schedule, a.History, asOf, p.Fines)
	if err != nil {
		return Evaluation{}, fmt.Errorf("loan %s: %w", a.ID, err)
	}
	return Evaluation{
		Schedule:    tracked,
		Summary:     Summarize(a.ID, tracked.Entries, asOf, p.GraceDays),
		Overpayment: over,
	}, nil
}
