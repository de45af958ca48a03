/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates products, books loans
	and records payments that demonstrate specific features.

AVAILABLE SCENARIOS:

	on-time:     Salary loan paid on every due date
	late-payer:  Semi-monthly loan paid ten days late each time
	default:     Term loan abandoned after one payment, past grace
	restructure: Fixed-rate loan stretched to 24 months after two payments
	portfolio:   All of the above plus promo, flat-charge and waived loans

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create products from products.*JSON
 3. Book loans, priced against their product
 4. Record payments through the ledger

Dates are relative to the handler's clock, so a scenario looks the same
whenever it is loaded.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "late-payer"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add to scenarioLoaders

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - products/products.go: Product JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/products"
	"github.com/warp/lending-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "on-time",
		Name:        "On-Time Borrower",
		Description: "Salary loan priced by principal band, every installment paid on its due date",
	},
	{
		ID:          "late-payer",
		Name:        "Late Payer",
		Description: "Semi-monthly loan paid ten days late each time, accruing fines under the configured policy",
	},
	{
		ID:          "default",
		Name:        "Defaulted Loan",
		Description: "Term loan with one payment, overdue past the grace period",
	},
	{
		ID:          "restructure",
		Name:        "Restructured Loan",
		Description: "Fixed-rate loan extended from 12 to 24 months, payments replayed over the new schedule",
	},
	{
		ID:          "portfolio",
		Name:        "Mixed Portfolio",
		Description: "Every scenario plus a promo-rate loan, a repaid flat-charge loan and a waived installment",
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"on-time":     h.loadOnTimeScenario,
		"late-payer":  h.loadLatePayerScenario,
		"default":     h.loadDefaultScenario,
		"restructure": h.loadRestructureScenario,
		"portfolio":   h.loadPortfolioScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		h.Log.Error("scenario failed", zap.String("scenario", req.ScenarioID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.products = make(map[generic.ProductID]*factory.Product)
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadOnTimeScenario(ctx context.Context) error {
	// Salary loan: 12,000.00 over 12 months, 14% band, 100.00 monthly charge
	if err := h.createProduct(ctx, products.SalaryLoanJSON("salary", "Salary Loan")); err != nil {
		return err
	}

	today := h.Clock()
	rec, s, err := h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-ontime-001",
		ProductID:  "salary",
		Borrower:   "Alice Santos",
		Principal:  generic.MustMoney("12000"),
		TermMonths: 12,
		Mode:       generic.ModeMonthly,
		StartDate:  monthsAgo(today, 6),
	})
	if err != nil {
		return err
	}
	return h.payInstallments(ctx, rec.ID, s, today, 0)
}

func (h *Handler) loadLatePayerScenario(ctx context.Context) error {
	if err := h.createProduct(ctx, products.SalaryLoanJSON("salary", "Salary Loan")); err != nil {
		return err
	}

	// Paid ten days late each time; the installment that fell due in the
	// last ten days is still unpaid and overdue.
	today := h.Clock()
	rec, s, err := h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-late-001",
		ProductID:  "salary",
		Borrower:   "Ben Cruz",
		Principal:  generic.MustMoney("60000"),
		TermMonths: 12,
		Mode:       generic.ModeSemiMonthly,
		StartDate:  monthsAgo(today, 4),
	})
	if err != nil {
		return err
	}
	return h.payInstallments(ctx, rec.ID, s, today, 10)
}

func (h *Handler) loadDefaultScenario(ctx context.Context) error {
	if err := h.createProduct(ctx, products.TermLoanJSON("term", "Term Loan")); err != nil {
		return err
	}

	today := h.Clock()
	rec, s, err := h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-default-001",
		ProductID:  "term",
		Borrower:   "Carla Reyes",
		Principal:  generic.MustMoney("30000"),
		TermMonths: 24,
		Mode:       generic.ModeMonthly,
		StartDate:  monthsAgo(today, 5),
	})
	if err != nil {
		return err
	}

	// Only the first installment was ever paid
	first := s.Entries[0]
	return h.pay(ctx, rec.ID, first.DueDate, first.AmountDue, 1)
}

func (h *Handler) loadRestructureScenario(ctx context.Context) error {
	if err := h.createProduct(ctx, products.FixedRateJSON("fixed-9", "Fixed 9%", "9")); err != nil {
		return err
	}

	today := h.Clock()
	rec, s, err := h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-restructure-001",
		ProductID:  "fixed-9",
		Borrower:   "Dan Lim",
		Principal:  generic.MustMoney("24000"),
		TermMonths: 12,
		Mode:       generic.ModeMonthly,
		StartDate:  monthsAgo(today, 4),
	})
	if err != nil {
		return err
	}
	for _, e := range s.Entries[:2] {
		if err := h.pay(ctx, rec.ID, e.DueDate, e.AmountDue, e.Sequence); err != nil {
			return err
		}
	}

	// The borrower asks for lower installments; the two payments are
	// replayed over the 24-month schedule.
	rec.TermMonths = 24
	return h.restructure(ctx, rec)
}

func (h *Handler) loadPortfolioScenario(ctx context.Context) error {
	for _, load := range []func(context.Context) error{
		h.loadOnTimeScenario,
		h.loadLatePayerScenario,
		h.loadDefaultScenario,
		h.loadRestructureScenario,
	} {
		if err := load(ctx); err != nil {
			return err
		}
	}

	today := h.Clock()
	for _, jsonStr := range []string{
		products.SeasonalPromoJSON("promo", "Q1 Promo", today.Year(), "6", "9"),
		products.FlatChargeJSON("flat", "Emergency Loan", "250"),
		products.InterestFreeJSON("interest-free", "Staff Loan"),
	} {
		if err := h.createProduct(ctx, jsonStr); err != nil {
			return err
		}
	}

	// Promo rate: booked on January 15th of this year
	promoStart := generic.NewTimePoint(today.Year(), 1, 15)
	if promoStart.After(today) {
		promoStart = today
	}
	rec, s, err := h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-promo-001",
		ProductID:  "promo",
		Borrower:   "Eva Tan",
		Principal:  generic.MustMoney("18000"),
		TermMonths: 6,
		Mode:       generic.ModeWeekly,
		StartDate:  promoStart,
	})
	if err != nil {
		return err
	}
	if err := h.payInstallments(ctx, rec.ID, s, today, 0); err != nil {
		return err
	}

	// Flat charge, lump sum, repaid in full: completed
	rec, s, err = h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-flat-001",
		ProductID:  "flat",
		Borrower:   "Felix Uy",
		Principal:  generic.MustMoney("5000"),
		TermMonths: 3,
		Mode:       generic.ModeLumpSum,
		StartDate:  monthsAgo(today, 5),
	})
	if err != nil {
		return err
	}
	last := s.Entries[len(s.Entries)-1]
	if err := h.pay(ctx, rec.ID, last.DueDate, last.AmountDue, last.Sequence); err != nil {
		return err
	}

	// Interest-free staff loan with the third installment waived
	rec, s, err = h.book(ctx, sqlite.LoanRecord{
		ID:         "loan-staff-001",
		ProductID:  "interest-free",
		Borrower:   "Grace Ong",
		Principal:  generic.MustMoney("6000"),
		TermMonths: 6,
		Mode:       generic.ModeMonthly,
		StartDate:  monthsAgo(today, 4),
	})
	if err != nil {
		return err
	}
	if err := h.Store.SaveWaiver(ctx, rec.ID, 3, "salary deduction missed during payroll migration"); err != nil {
		return err
	}
	for _, e := range s.Entries {
		if e.Sequence == 3 || e.DueDate.After(today) {
			continue
		}
		if err := h.pay(ctx, rec.ID, e.DueDate, e.AmountDue, e.Sequence); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createProduct(ctx context.Context, jsonStr string) error {
	p, err := h.PricingFactory.ParsePricing(jsonStr)
	if err != nil {
		return err
	}

	record := sqlite.PricingRecord{
		ID:         string(p.ID),
		Name:       p.Name,
		Mode:       p.Reference.Mode(),
		ConfigJSON: jsonStr,
	}
	if err := h.Store.SavePricing(ctx, record); err != nil {
		return err
	}

	h.mu.Lock()
	h.products[p.ID] = p
	h.mu.Unlock()
	return nil
}

// payInstallments pays each installment in full, lateDays after it fell
// due, as long as that day is not after today.
func (h *Handler) payInstallments(ctx context.Context, id generic.LoanID, s amortization.Schedule, today generic.TimePoint, lateDays int) error {
	for _, e := range s.Entries {
		paidAt := e.DueDate.AddDays(lateDays)
		if paidAt.After(today) {
			break
		}
		if err := h.pay(ctx, id, paidAt, e.AmountDue, e.Sequence); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) pay(ctx context.Context, id generic.LoanID, at generic.TimePoint, amount generic.Amount, seq int) error {
	return generic.NewLedger(h.Store).Append(ctx, generic.Payment{
		LoanID:         id,
		Kind:           generic.PaymentRegular,
		PaidAt:         at,
		Amount:         amount,
		Reference:      fmt.Sprintf("OR-%s-%02d", id, seq),
		IdempotencyKey: fmt.Sprintf("%s-pay-%d", id, seq),
	})
}

// monthsAgo returns the first day of the month n months before today.
func monthsAgo(today generic.TimePoint, n int) generic.TimePoint {
	t := today.AddMonths(-n)
	return generic.StartOfMonth(t.Year(), t.Month())
}
