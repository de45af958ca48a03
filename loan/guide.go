package loan

import "github.com/warp/lending-engine/generic"

// =============================================================================
// LOAN GUIDE - Portfolio counters
// =============================================================================

type Guide struct {
	ActiveLoans      int
	CompletedLoans   int
	DefaultedLoans   int
	TotalOutstanding generic.Amount
	TotalOverdue     generic.Amount
	Loans            []AccountSummary
}

// BuildGuide folds summaries into portfolio counters. It keeps no state
// between calls.
func BuildGuide(summaries []AccountSummary) Guide {
	g := Guide{
		TotalOutstanding: generic.ZeroMoney(),
		TotalOverdue:     generic.ZeroMoney(),
		Loans:            summaries,
	}
	for _, s := range summaries {
		switch s.Status {
		case StatusActive:
			g.ActiveLoans++
		case StatusCompleted:
			g.CompletedLoans++
		case StatusDefaulted:
			g.DefaultedLoans++
		}
		g.TotalOutstanding = g.TotalOutstanding.Add(s.CurrentBalance)
		g.TotalOverdue = g.TotalOverdue.Add(s.OverdueAmount)
	}
	return g
}
