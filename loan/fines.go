package loan

import (
	"github.com/shopspring/decimal"
	"github.com/warp/lending-engine/generic"
)

// =============================================================================
// FINES POLICY - Supplied by the caller
// =============================================================================

// FinesPolicy computes the fine for an installment that is daysLate days
// past due with overdue still unpaid. The tracker rounds the result and
// never lets an installment's fine decrease.
type FinesPolicy func(overdue generic.Amount, daysLate int) generic.Amount

// NoFines charges nothing.
func NoFines(overdue generic.Amount, _ int) generic.Amount {
	return overdue.Zero()
}

// DailyPercentFines charges rate percent of the overdue amount per day late.
func DailyPercentFines(rate generic.Amount) FinesPolicy {
	return func(overdue generic.Amount, daysLate int) generic.Amount {
		if daysLate <= 0 {
			return overdue.Zero()
		}
		return overdue.MulPercent(rate).Mul(decimal.NewFromInt(int64(daysLate)))
	}
}

// Capped limits the fine produced by p to limit.
func Capped(p FinesPolicy, limit generic.Amount) FinesPolicy {
	return func(overdue generic.Amount, daysLate int) generic.Amount {
		return p(overdue, daysLate).Min(limit)
	}
}
