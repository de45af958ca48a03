package amortization

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/generic"
)

// semiMonthlyOffset is the day offset of the mid-month installment.
const semiMonthlyOffset = 15

// MaxTermMonths is the longest term the generator accepts: 50 years.
const MaxTermMonths = 600

// Generate builds the installment schedule for t.
func Generate(t Terms) (Schedule, error) {
	if err := validate(t); err != nil {
		return Schedule{}, err
	}

	n := InstallmentCount(t.Mode, t.StartDate, t.Term)
	if n <= 0 {
		return Schedule{}, &InvalidTermError{Term: t.Term, Mode: t.Mode, Installments: n}
	}

	if t.Mode == generic.ModeLumpSum {
		return finish(t, []Entry{lumpSum(t)}), nil
	}

	level := t.Principal.Div(decimal.NewFromInt(int64(n))).Round()
	perPeriod := decimal.NewFromInt(int64(t.Mode.PeriodsPerYear()))

	entries := make([]Entry, 0, n)
	balance := t.Principal
	periodStart := t.StartDate
	for i := 1; i <= n; i++ {
		// Rounding up can exhaust a small principal before the last installment.
		principal := level.Min(balance)
		if i == n {
			principal = balance
		}
		interest := balance.MulPercent(t.Rate).Div(perPeriod).Round()
		balance = balance.Sub(principal)

		due := DueDate(t.Mode, t.StartDate, i)
		entries = append(entries, newEntry(i, periodStart, due, principal, interest, balance))
		periodStart = due
	}

	return finish(t, entries), nil
}

func validate(t Terms) error {
	if !t.Mode.Valid() {
		return fmt.Errorf("%w: %d", generic.ErrUnknownPaymentMode, int(t.Mode))
	}
	if t.Principal.Unit != generic.UnitCurrency || !t.Principal.IsPositive() || !t.Principal.InScale() {
		return &InvalidPrincipalError{Principal: t.Principal}
	}
	if t.Rate.Unit != generic.UnitPercent {
		return &InvalidRateError{Rate: t.Rate, Reason: "an annual percentage is required"}
	}
	if t.Rate.IsNegative() {
		return &InvalidRateError{Rate: t.Rate, Reason: "must not be negative"}
	}
	if t.Term <= 0 {
		return &InvalidTermError{Term: t.Term, Mode: t.Mode}
	}
	if t.Term > MaxTermMonths {
		return &InvalidTermError{Term: t.Term, Mode: t.Mode, Max: MaxTermMonths}
	}
	return nil
}

func lumpSum(t Terms) Entry {
	interest := t.Principal.MulPercent(t.Rate).
		Mul(decimal.NewFromInt(int64(t.Term))).
		Div(decimal.NewFromInt(12)).
		Round()
	due := DueDate(generic.ModeLumpSum, t.StartDate, t.Term)
	return newEntry(1, t.StartDate, due, t.Principal, interest, t.Principal.Zero())
}

func newEntry(seq int, start, due generic.TimePoint, principal, interest, remaining generic.Amount) Entry {
	amountDue := principal.Add(interest)
	return Entry{
		Sequence:           seq,
		PeriodStart:        start,
		DueDate:            due,
		Principal:          principal,
		Interest:           interest,
		AmountDue:          amountDue,
		RemainingPrincipal: remaining,
		Fines:              generic.ZeroMoney(),
		Paid:               generic.ZeroMoney(),
		Balance:            amountDue,
		Status:             StatusPending,
	}
}

func finish(t Terms, entries []Entry) Schedule {
	s := Schedule{
		Terms:          t,
		Entries:        entries,
		TotalPrincipal: generic.ZeroMoney(),
		TotalInterest:  generic.ZeroMoney(),
		TotalDue:       generic.ZeroMoney(),
	}
	for _, e := range entries {
		s.TotalPrincipal = s.TotalPrincipal.Add(e.Principal)
		s.TotalInterest = s.TotalInterest.Add(e.Interest)
		s.TotalDue = s.TotalDue.Add(e.AmountDue)
	}
	return s
}

// =============================================================================
// CALENDAR
// =============================================================================

// InstallmentCount returns how many installments a term of termMonths has
// under mode. Zero or less means the term is too short for the mode, or
// longer than MaxTermMonths.
func InstallmentCount(mode generic.PaymentMode, start generic.TimePoint, termMonths int) int {
	if termMonths <= 0 || termMonths > MaxTermMonths {
		return 0
	}
	switch mode {
	case generic.ModeDaily:
		return generic.DaysBetween(start, start.AddMonths(termMonths))
	case generic.ModeWeekly:
		return generic.DaysBetween(start, start.AddMonths(termMonths)) / 7
	case generic.ModeSemiMonthly:
		return 2 * termMonths
	case generic.ModeMonthly:
		return termMonths
	case generic.ModeQuarterly:
		return termMonths / 3
	case generic.ModeSemiAnnual:
		return termMonths / 6
	case generic.ModeLumpSum:
		return 1
	default:
		return 0
	}
}

// DueDate returns the due date of installment i (1-based). For lump-sum, i
// is the term in months.
func DueDate(mode generic.PaymentMode, start generic.TimePoint, i int) generic.TimePoint {
	switch mode {
	case generic.ModeDaily:
		return start.AddDays(i)
	case generic.ModeWeekly:
		return start.AddDays(7 * i)
	case generic.ModeSemiMonthly:
		month := (i - 1) / 2
		if i%2 == 1 {
			return start.AddMonths(month).AddDays(semiMonthlyOffset)
		}
		return start.AddMonths(month + 1)
	case generic.ModeMonthly, generic.ModeLumpSum:
		return start.AddMonths(i)
	case generic.ModeQuarterly:
		return start.AddMonths(3 * i)
	case generic.ModeSemiAnnual:
		return start.AddMonths(6 * i)
	default:
		panic(fmt.Sprintf("amortization: due date for unknown payment mode %d", int(mode)))
	}
}
