package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/loan"
	"github.com/warp/lending-engine/pricing"
	"github.com/warp/lending-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// PRICING A LOAN
// =============================================================================

// priceLoan resolves the product for a loan's parameters. A FlatCharge
// product yields a zero rate and a one-time service charge; the charges
// matrix, if any, adds to the service charge.
func priceLoan(p *factory.Product, principal generic.Amount, termMonths int, mode generic.PaymentMode, start generic.TimePoint) (rate, charge generic.Amount, err error) {
	rate, charge = generic.ZeroPercent(), generic.ZeroMoney()

	resolved, err := pricing.ResolveFor(p.Reference, projection(principal, termMonths, start))
	if err != nil {
		return rate, charge, fmt.Errorf("pricing %s: %w", p.ID, err)
	}
	if resolved.Unit == generic.UnitCurrency {
		charge = resolved.Round()
	} else {
		rate = resolved
	}

	if p.Charges != nil {
		cell, err := p.Charges.Lookup(principal.Value, mode)
		if err != nil {
			return rate, charge, fmt.Errorf("pricing %s: charges: %w", p.ID, err)
		}
		charge = charge.Add(serviceCharge(principal, cell))
	}
	return rate, charge, nil
}

// book prices a loan against its product, checks its terms and stores
// it. A loan without an ID gets one.
func (h *Handler) book(ctx context.Context, rec sqlite.LoanRecord) (sqlite.LoanRecord, amortization.Schedule, error) {
	s, err := h.reprice(ctx, &rec)
	if err != nil {
		return rec, amortization.Schedule{}, err
	}
	if rec.ID == "" {
		rec.ID = generic.NewLoanID()
	}
	if err := h.Store.CreateLoan(ctx, rec); err != nil {
		return rec, amortization.Schedule{}, err
	}
	return rec, s, nil
}

// restructure reprices a loan with new terms and replaces the stored ones.
func (h *Handler) restructure(ctx context.Context, rec sqlite.LoanRecord) error {
	if _, err := h.reprice(ctx, &rec); err != nil {
		return err
	}
	return h.Store.RestructureLoan(ctx, rec)
}

// reprice sets the rate and service charge from the loan's product and
// generates the schedule to check the terms.
func (h *Handler) reprice(ctx context.Context, rec *sqlite.LoanRecord) (amortization.Schedule, error) {
	p, err := h.product(ctx, rec.ProductID)
	if err != nil {
		return amortization.Schedule{}, err
	}
	rec.AnnualRate, rec.ServiceCharge, err = priceLoan(p, rec.Principal, rec.TermMonths, rec.Mode, rec.StartDate)
	if err != nil {
		return amortization.Schedule{}, err
	}
	s, err := amortization.Generate(rec.Terms())
	if err != nil {
		return amortization.Schedule{}, err
	}
	h.Metrics.ScheduleGenerated(rec.Mode)
	return s, nil
}

// projection is the key set a loan is priced by. The term year counts a
// partial year as a whole one: 13 months is year 2.
func projection(principal generic.Amount, termMonths int, start generic.TimePoint) pricing.Projection {
	return pricing.Projection{
		Amount: principal.Value,
		Date:   start,
		Year:   (termMonths + 11) / 12,
	}
}

func projectionKey(kind generic.KeyKind, p pricing.Projection) string {
	switch kind {
	case generic.KeyAmount:
		return p.Amount.StringFixed(generic.UnitCurrency.Scale())
	case generic.KeyDate:
		return p.Date.String()
	case generic.KeyYear:
		return strconv.Itoa(p.Year)
	default:
		return ""
	}
}

// serviceCharge turns a matrix cell into money: percent cells apply to
// the principal.
func serviceCharge(principal, cell generic.Amount) generic.Amount {
	if cell.Unit == generic.UnitPercent {
		return principal.MulPercent(cell).Round()
	}
	return cell
}

// =============================================================================
// EVALUATION
// =============================================================================

// account regenerates the loan's schedule and loads its history.
func (h *Handler) account(ctx context.Context, l sqlite.LoanRecord) (loan.Account, error) {
	s, err := amortization.Generate(l.Terms())
	if err != nil {
		return loan.Account{}, fmt.Errorf("loan %s: %w", l.ID, err)
	}
	return h.withHistory(ctx, l.ID, s)
}

func (h *Handler) withHistory(ctx context.Context, id generic.LoanID, s amortization.Schedule) (loan.Account, error) {
	payments, err := generic.NewLedger(h.Store).Payments(ctx, id)
	if err != nil {
		return loan.Account{}, err
	}
	waived, err := h.Store.Waivers(ctx, id)
	if err != nil {
		return loan.Account{}, err
	}
	return loan.Account{
		ID:       id,
		Schedule: s,
		History:  loan.History{Payments: payments, Waived: waived},
	}, nil
}

// evaluateLoan loads a loan and evaluates it as of asOf.
func (h *Handler) evaluateLoan(ctx context.Context, id generic.LoanID, asOf generic.TimePoint) (*sqlite.LoanRecord, loan.Evaluation, error) {
	l, err := h.Store.GetLoan(ctx, id)
	if err != nil {
		return nil, loan.Evaluation{}, err
	}
	acct, err := h.account(ctx, *l)
	if err != nil {
		return nil, loan.Evaluation{}, err
	}
	ev, err := loan.Evaluate(acct, asOf, h.Policy)
	if err != nil {
		return nil, loan.Evaluation{}, err
	}
	return l, ev, nil
}

// =============================================================================
// PORTFOLIO
// =============================================================================

// Portfolio evaluates every loan as of asOf and folds the summaries into
// a guide. Schedules are generated and evaluated in parallel. A loan that
// cannot be evaluated is reported in the returned list and left out of
// the guide; the error return is for storage failures and cancellation.
func (h *Handler) Portfolio(ctx context.Context, asOf generic.TimePoint) (loan.Guide, []LoanErrDTO, error) {
	start := time.Now()

	loans, err := h.Store.ListLoans(ctx)
	if err != nil {
		return loan.Guide{}, nil, err
	}

	jobs := make([]loan.Job, len(loans))
	for i, l := range loans {
		jobs[i] = loan.Job{LoanID: l.ID, Terms: l.Terms()}
	}
	generated, err := loan.GenerateBatch(ctx, jobs, h.Workers)
	if err != nil {
		return loan.Guide{}, nil, err
	}

	var failed []LoanErrDTO
	fail := func(id generic.LoanID, err error) {
		h.Metrics.EngineError(err)
		h.Log.Warn("loan skipped in portfolio", zap.String("loan_id", string(id)), zap.Error(err))
		failed = append(failed, LoanErrDTO{LoanID: string(id), Error: err.Error()})
	}

	accounts := make([]loan.Account, 0, len(generated))
	for _, res := range generated {
		if res.Err != nil {
			fail(res.LoanID, res.Err)
			continue
		}
		acct, err := h.withHistory(ctx, res.LoanID, res.Schedule)
		if err != nil {
			return loan.Guide{}, nil, err
		}
		accounts = append(accounts, acct)
	}

	evaluated, err := loan.EvaluateBatch(ctx, accounts, asOf, h.Policy, h.Workers)
	if err != nil {
		return loan.Guide{}, nil, err
	}
	summaries := make([]loan.AccountSummary, 0, len(evaluated))
	for _, res := range evaluated {
		if res.Err != nil {
			fail(res.LoanID, res.Err)
			continue
		}
		summaries = append(summaries, res.Evaluation.Summary)
	}

	g := loan.BuildGuide(summaries)
	h.Metrics.ObserveGuide(g, time.Since(start))
	return g, failed, nil
}

func toGuideDTO(g loan.Guide, asOf generic.TimePoint, failed []LoanErrDTO) GuideDTO {
	loans := make([]SummaryDTO, len(g.Loans))
	for i, s := range g.Loans {
		loans[i] = toSummaryDTO(s)
	}
	return GuideDTO{
		AsOf:             asOf.String(),
		ActiveLoans:      g.ActiveLoans,
		CompletedLoans:   g.CompletedLoans,
		DefaultedLoans:   g.DefaultedLoans,
		TotalOutstanding: g.TotalOutstanding.String(),
		TotalOverdue:     g.TotalOverdue.String(),
		Loans:            loans,
		Errors:           failed,
	}
}
