/*
handlers.go - HTTP API handlers for the lending engine

PURPOSE:
  Exposes rate resolution, schedule generation and loan tracking via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  pricing, amortization and loan packages.

ENDPOINTS:
  Pricing:
    GET    /api/pricing                  List products
    POST   /api/pricing                  Create or replace a product from JSON
    GET    /api/pricing/{id}             Get product
    DELETE /api/pricing/{id}             Delete product (409 while loans use it)
    POST   /api/pricing/{id}/resolve     Resolve the rate for loan parameters
    POST   /api/pricing/{id}/charges     Look up the service charges matrix

  Loans:
    GET    /api/loans                    List loans
    POST   /api/loans                    Book a loan
    GET    /api/loans/{id}               Loan with its summary
    GET    /api/loans/{id}/schedule      Tracked schedule (?as_of=YYYY-MM-DD)
    GET    /api/loans/{id}/summary       Account summary (?as_of=)
    GET    /api/loans/{id}/payments      Payment ledger (?from=&to=)
    POST   /api/loans/{id}/payments      Record a payment or reversal
    POST   /api/loans/{id}/waivers       Waive an installment
    PUT    /api/loans/{id}/restructure   Replace the loan's terms

  Portfolio:
    GET    /api/guide                    Portfolio guide (?as_of=)
    POST   /api/schedules/preview        Generate a schedule without booking

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - PricingFactory: JSON to Product conversion
  - Policy: Grace days and fines rule
  - Cached products for quick lookups

  Schedules are never stored. Every read regenerates the schedule from the
  loan's terms and replays the payment ledger over it, so the answer for a
  given as-of date is always the same.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (pricing, amortization, loan)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, unparseable amount or date
  - 404: Loan, product or payment not found
  - 409: Duplicate idempotency key, double reversal, product in use
  - 422: Rejected by the engine (overlapping tiers, bad term, no tier...)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - portfolio.go: Evaluation and the portfolio guide
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/loan"
	"github.com/warp/lending-engine/pricing"
	"github.com/warp/lending-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler. Zero values get defaults.
type Options struct {
	Policy  loan.Policy
	Workers int
	Log     *zap.Logger
	Metrics *Metrics
	// Clock supplies the default as-of date.
	Clock func() generic.TimePoint
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          *sqlite.Store
	PricingFactory *factory.PricingFactory
	Policy         loan.Policy
	Workers        int
	Log            *zap.Logger
	Metrics        *Metrics
	Clock          func() generic.TimePoint

	mu       sync.RWMutex
	products map[generic.ProductID]*factory.Product

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Clock == nil {
		opts.Clock = generic.Today
	}
	if opts.Policy.Fines == nil {
		opts.Policy.Fines = loan.NoFines
	}
	return &Handler{
		Store:          store,
		PricingFactory: factory.NewPricingFactory(),
		Policy:         opts.Policy,
		Workers:        opts.Workers,
		Log:            opts.Log,
		Metrics:        opts.Metrics,
		Clock:          opts.Clock,
		products:       make(map[generic.ProductID]*factory.Product),
	}
}

// LoadPricing loads all products from the database into cache. Records
// that no longer parse are logged and skipped.
func (h *Handler) LoadPricing(ctx context.Context) error {
	records, err := h.Store.ListPricing(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.products = make(map[generic.ProductID]*factory.Product, len(records))
	for _, r := range records {
		p, err := h.PricingFactory.ParsePricing(r.ConfigJSON)
		if err != nil {
			h.Log.Warn("skipping invalid pricing", zap.String("pricing_id", r.ID), zap.Error(err))
			continue
		}
		h.products[p.ID] = p
	}
	h.Log.Info("pricing loaded", zap.Int("products", len(h.products)))
	return nil
}

// product returns the cached product, reading through to the store.
func (h *Handler) product(ctx context.Context, id string) (*factory.Product, error) {
	h.mu.RLock()
	p, ok := h.products[generic.ProductID(id)]
	h.mu.RUnlock()
	if ok {
		return p, nil
	}

	rec, err := h.Store.GetPricing(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err = h.PricingFactory.ParsePricing(rec.ConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("stored pricing %s: %w", id, err)
	}
	h.mu.Lock()
	h.products[p.ID] = p
	h.mu.Unlock()
	return p, nil
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// ListPricing returns all products.
// GET /api/pricing
func (h *Handler) ListPricing(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListPricing(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pricing", err)
		return
	}

	dtos := make([]PricingDTO, 0, len(records))
	for _, rec := range records {
		dto, err := toPricingDTO(rec)
		if err != nil {
			h.Log.Warn("stored pricing is not valid JSON", zap.String("pricing_id", rec.ID), zap.Error(err))
			continue
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pricing": dtos})
}

// CreatePricing validates a product and stores it, replacing any product
// with the same ID. Existing loans keep the rate they were booked at.
// POST /api/pricing
func (h *Handler) CreatePricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var pj factory.PricingJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.PricingFactory.FromJSON(pj)
	if err != nil {
		h.Metrics.EngineError(err)
		writeErrorCode(w, http.StatusUnprocessableEntity, "Invalid pricing", ClassifyError(err), err)
		return
	}

	canonical, err := json.Marshal(h.PricingFactory.ToJSON(p))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode pricing", err)
		return
	}
	rec := sqlite.PricingRecord{
		ID:         string(p.ID),
		Name:       p.Name,
		Mode:       p.Reference.Mode(),
		ConfigJSON: string(canonical),
	}
	if err := h.Store.SavePricing(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save pricing", err)
		return
	}

	h.mu.Lock()
	h.products[p.ID] = p
	h.mu.Unlock()

	saved, err := h.Store.GetPricing(ctx, rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload pricing", err)
		return
	}
	dto, err := toPricingDTO(*saved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to decode pricing", err)
		return
	}
	h.Log.Info("pricing saved", zap.String("pricing_id", rec.ID), zap.String("mode", rec.Mode), zap.Int("version", saved.Version))
	writeJSON(w, http.StatusCreated, dto)
}

// GetPricing returns one product.
// GET /api/pricing/{id}
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetPricing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, "Failed to get pricing", err)
		return
	}
	dto, err := toPricingDTO(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to decode pricing", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DeletePricing removes a product no loan references.
// DELETE /api/pricing/{id}
func (h *Handler) DeletePricing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeletePricing(r.Context(), id); err != nil {
		h.writeEngineError(w, "Failed to delete pricing", err)
		return
	}

	h.mu.Lock()
	delete(h.products, generic.ProductID(id))
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// ResolvePricing resolves a product's rate for the given loan parameters.
// POST /api/pricing/{id}/resolve
func (h *Handler) ResolvePricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.product(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, "Failed to get pricing", err)
		return
	}

	principal := generic.ZeroMoney()
	if req.Principal != "" {
		principal, err = parseMoney("principal", req.Principal)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid principal", err)
			return
		}
	}
	start, err := parseDateOr(req.StartDate, h.Clock())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}

	proj := projection(principal, req.TermMonths, start)
	value, err := pricing.ResolveFor(p.Reference, proj)
	if err != nil {
		h.writeEngineError(w, "Failed to resolve rate", err)
		return
	}

	dto := ResolveDTO{
		ProductID: string(p.ID),
		Mode:      p.Reference.Mode(),
		Value:     value.Value.StringFixed(value.Unit.Scale()),
		Unit:      string(value.Unit),
	}
	if kind, keyed := pricing.KeyKindOf(p.Reference); keyed {
		dto.Key = projectionKey(kind, proj)
	}
	writeJSON(w, http.StatusOK, dto)
}

// LookupCharges returns the service charge for a principal and payment
// mode, or the whole matrix row when no mode is given.
// POST /api/pricing/{id}/charges
func (h *Handler) LookupCharges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChargesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	principal, err := parseMoney("principal", req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal", err)
		return
	}

	p, err := h.product(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, "Failed to get pricing", err)
		return
	}
	if p.Charges == nil {
		writeError(w, http.StatusNotFound, "Product has no service charges", nil)
		return
	}

	if req.Mode == "" {
		row, err := p.Charges.LookupRow(principal.Value)
		if err != nil {
			h.writeEngineError(w, "Failed to look up charges", err)
			return
		}
		cells := make(map[string]string, len(row))
		for _, mode := range generic.AllPaymentModes() {
			cells[mode.String()] = row[mode].String()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"product_id": string(p.ID),
			"unit":       string(p.Charges.Unit()),
			"charges":    cells,
		})
		return
	}

	mode, err := generic.ParsePaymentMode(req.Mode)
	if err != nil {
		h.writeEngineError(w, "Invalid payment mode", err)
		return
	}
	charge, err := p.Charges.Lookup(principal.Value, mode)
	if err != nil {
		h.writeEngineError(w, "Failed to look up charges", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":     string(p.ID),
		"payment_mode":   mode.String(),
		"unit":           string(charge.Unit),
		"charge":         charge.String(),
		"service_charge": serviceCharge(principal, charge).String(),
	})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns all loans.
// GET /api/loans
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Store.ListLoans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": dtos})
}

// CreateLoan prices and books a loan. The resolved rate and service
// charge are stored with it.
// POST /api/loans
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProductID == "" || req.Borrower == "" {
		writeError(w, http.StatusBadRequest, "product_id and borrower are required", nil)
		return
	}

	principal, err := parseMoney("principal", req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal", err)
		return
	}
	start, err := parseDateOr(req.StartDate, h.Clock())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	mode, err := generic.ParsePaymentMode(req.PaymentMode)
	if err != nil {
		h.writeEngineError(w, "Invalid payment mode", err)
		return
	}

	rec, schedule, err := h.book(ctx, sqlite.LoanRecord{
		ID:         generic.LoanID(req.ID),
		ProductID:  req.ProductID,
		Borrower:   req.Borrower,
		Principal:  principal,
		TermMonths: req.TermMonths,
		Mode:       mode,
		StartDate:  start,
	})
	if err != nil {
		h.writeEngineError(w, "Failed to book loan", err)
		return
	}

	saved, err := h.Store.GetLoan(ctx, rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload loan", err)
		return
	}
	h.Log.Info("loan booked",
		zap.String("loan_id", string(rec.ID)),
		zap.String("product_id", rec.ProductID),
		zap.String("principal", principal.String()),
		zap.String("annual_rate", rateString(rec.AnnualRate)),
		zap.String("payment_mode", mode.String()),
	)

	sched := toScheduleDTO(schedule, rec.ServiceCharge)
	sched.LoanID = string(rec.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"loan":     toLoanDTO(*saved),
		"schedule": sched,
	})
}

// GetLoan returns a loan with its summary.
// GET /api/loans/{id}?as_of=YYYY-MM-DD
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}
	l, ev, err := h.evaluateLoan(ctx, generic.LoanID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		h.writeEngineError(w, "Failed to evaluate loan", err)
		return
	}
	writeJSON(w, http.StatusOK, loanDetail(*l, ev))
}

// GetSchedule returns the loan's schedule with payments, fines and
// statuses applied as of the given date.
// GET /api/loans/{id}/schedule?as_of=YYYY-MM-DD
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}
	l, ev, err := h.evaluateLoan(ctx, generic.LoanID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		h.writeEngineError(w, "Failed to evaluate loan", err)
		return
	}

	dto := toScheduleDTO(ev.Schedule, l.ServiceCharge)
	dto.LoanID = string(l.ID)
	dto.AsOf = asOf.String()
	writeJSON(w, http.StatusOK, dto)
}

// GetSummary returns the loan's account summary.
// GET /api/loans/{id}/summary?as_of=YYYY-MM-DD
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}
	_, ev, err := h.evaluateLoan(ctx, generic.LoanID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		h.writeEngineError(w, "Failed to evaluate loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(ev.Summary))
}

// ListPayments returns the loan's ledger, reversals included, and the
// total of effective payments. With from and/or to, only events paid in
// that closed range are listed and the total is as of to.
// GET /api/loans/{id}/payments?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.LoanID(chi.URLParam(r, "id"))

	l, err := h.Store.GetLoan(ctx, id)
	if err != nil {
		h.writeEngineError(w, "Failed to get loan", err)
		return
	}
	from, err := parseDateOr(r.URL.Query().Get("from"), l.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := parseDateOr(r.URL.Query().Get("to"), h.Clock())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	ledger := generic.NewLedger(h.Store)
	var payments []generic.Payment
	if r.URL.Query().Has("from") || r.URL.Query().Has("to") {
		payments, err = ledger.PaymentsInPeriod(ctx, id, generic.Period{Start: from, End: to})
	} else {
		payments, err = ledger.Payments(ctx, id)
	}
	if err != nil {
		h.writeEngineError(w, "Failed to load payments", err)
		return
	}
	total, err := ledger.TotalPaid(ctx, id, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to total payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, PaymentListDTO{
		Payments:  dtos,
		TotalPaid: total.String(),
		AsOf:      to.String(),
	})
}

// RecordPayment appends a payment, or a reversal when reverses_id is set,
// and returns the loan's summary afterwards.
// POST /api/loans/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.LoanID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paidAt, err := parseDateOr(req.PaidAt, h.Clock())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_at date (use YYYY-MM-DD)", err)
		return
	}
	p := generic.Payment{
		ID:             generic.NewPaymentID(),
		LoanID:         id,
		Kind:           generic.PaymentRegular,
		PaidAt:         paidAt,
		Amount:         generic.ZeroMoney(),
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.ReversesID != "" {
		p.Kind = generic.PaymentReversal
		p.ReversesID = generic.PaymentID(req.ReversesID)
	} else {
		p.Amount, err = parseMoney("amount", req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
	}

	if _, err := h.Store.GetLoan(ctx, id); err != nil {
		h.writeEngineError(w, "Failed to get loan", err)
		return
	}

	err = h.Store.WithTx(ctx, func(tx generic.Store) error {
		return generic.NewLedger(tx).Append(ctx, p)
	})
	if err != nil {
		h.writeEngineError(w, "Failed to record payment", err)
		return
	}
	h.Metrics.PaymentRecorded(p.Kind)

	saved, err := h.Store.GetPayment(ctx, p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload payment", err)
		return
	}

	asOf := h.Clock()
	if paidAt.After(asOf) {
		asOf = paidAt
	}
	_, ev, err := h.evaluateLoan(ctx, id, asOf)
	if err != nil {
		h.writeEngineError(w, "Failed to evaluate loan", err)
		return
	}

	h.Log.Info("payment recorded",
		zap.String("loan_id", string(id)),
		zap.String("payment_id", string(p.ID)),
		zap.String("kind", string(p.Kind)),
		zap.String("amount", p.Amount.String()),
		zap.String("paid_at", paidAt.String()),
	)
	writeJSON(w, http.StatusCreated, PaymentResultDTO{
		Payment:     toPaymentDTO(*saved),
		Summary:     toSummaryDTO(ev.Summary),
		Overpayment: ev.Overpayment.String(),
	})
}

// WaiveInstallment marks an installment as not owed. An installment that
// is already settled today cannot be waived, and the waiver is only stored
// if the loan still evaluates with it.
// POST /api/loans/{id}/waivers
func (h *Handler) WaiveInstallment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.LoanID(chi.URLParam(r, "id"))

	var req WaiverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	l, err := h.Store.GetLoan(ctx, id)
	if err != nil {
		h.writeEngineError(w, "Failed to get loan", err)
		return
	}
	acct, err := h.account(ctx, *l)
	if err != nil {
		h.writeEngineError(w, "Failed to load loan", err)
		return
	}

	// Waivers replay before payments, so check settlement against today's
	// schedule first.
	asOf := h.Clock()
	current, err := loan.Evaluate(acct, asOf, h.Policy)
	if err != nil {
		h.writeEngineError(w, "Failed to evaluate loan", err)
		return
	}
	if _, err := loan.Waive(current.Schedule.Entries, req.Sequence); err != nil {
		h.writeEngineError(w, "Cannot waive installment", err)
		return
	}

	acct.History.Waived = append(acct.History.Waived, req.Sequence)
	ev, err := loan.Evaluate(acct, asOf, h.Policy)
	if err != nil {
		h.writeEngineError(w, "Cannot waive installment", err)
		return
	}

	if err := h.Store.SaveWaiver(ctx, id, req.Sequence, req.Reason); err != nil {
		h.writeEngineError(w, "Failed to save waiver", err)
		return
	}
	h.Log.Info("installment waived",
		zap.String("loan_id", string(id)),
		zap.Int("sequence", req.Sequence),
		zap.String("reason", req.Reason),
	)
	writeJSON(w, http.StatusCreated, loanDetail(*l, ev))
}

// RestructureLoan replaces a loan's terms and reprices it against its
// product. Payments are kept and replayed over the new schedule; waivers
// are dropped.
// PUT /api/loans/{id}/restructure
func (h *Handler) RestructureLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.LoanID(chi.URLParam(r, "id"))

	var req RestructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	l, err := h.Store.GetLoan(ctx, id)
	if err != nil {
		h.writeEngineError(w, "Failed to get loan", err)
		return
	}
	next := *l
	if req.Principal != "" {
		if next.Principal, err = parseMoney("principal", req.Principal); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid principal", err)
			return
		}
	}
	if req.TermMonths != 0 {
		next.TermMonths = req.TermMonths
	}
	if req.PaymentMode != "" {
		if next.Mode, err = generic.ParsePaymentMode(req.PaymentMode); err != nil {
			h.writeEngineError(w, "Invalid payment mode", err)
			return
		}
	}
	if req.StartDate != "" {
		if next.StartDate, err = generic.ParseDate(req.StartDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
			return
		}
	}

	if err := h.restructure(ctx, next); err != nil {
		h.writeEngineError(w, "Failed to restructure loan", err)
		return
	}

	saved, ev, err := h.evaluateLoan(ctx, id, h.Clock())
	if err != nil {
		h.writeEngineError(w, "Failed to evaluate loan", err)
		return
	}
	h.Log.Info("loan restructured",
		zap.String("loan_id", string(id)),
		zap.Int("version", saved.Version),
		zap.String("principal", saved.Principal.String()),
		zap.Int("term_months", saved.TermMonths),
		zap.String("payment_mode", saved.Mode.String()),
	)
	writeJSON(w, http.StatusOK, loanDetail(*saved, ev))
}

// =============================================================================
// PORTFOLIO HANDLERS
// =============================================================================

// GetGuide returns the portfolio guide.
// GET /api/guide?as_of=YYYY-MM-DD
func (h *Handler) GetGuide(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}

	g, failed, err := h.Portfolio(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build guide", err)
		return
	}
	writeJSON(w, http.StatusOK, toGuideDTO(g, asOf, failed))
}

// PreviewSchedule generates a schedule without booking a loan, either
// priced by a product or at an explicit annual rate.
// POST /api/schedules/preview
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if (req.ProductID == "") == (req.AnnualRate == "") {
		writeError(w, http.StatusBadRequest, "Exactly one of product_id and annual_rate is required", nil)
		return
	}

	principal, err := parseMoney("principal", req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal", err)
		return
	}
	start, err := parseDateOr(req.StartDate, h.Clock())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	mode, err := generic.ParsePaymentMode(req.PaymentMode)
	if err != nil {
		h.writeEngineError(w, "Invalid payment mode", err)
		return
	}

	rate, charge := generic.ZeroPercent(), generic.ZeroMoney()
	if req.ProductID != "" {
		p, err := h.product(ctx, req.ProductID)
		if err != nil {
			h.writeEngineError(w, "Failed to get pricing", err)
			return
		}
		rate, charge, err = priceLoan(p, principal, req.TermMonths, mode, start)
		if err != nil {
			h.writeEngineError(w, "Failed to price loan", err)
			return
		}
	} else {
		rate, err = generic.ParseAmount(req.AnnualRate, generic.UnitPercent)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid annual rate", err)
			return
		}
	}

	schedule, err := amortization.Generate(amortization.Terms{
		Principal: principal,
		Term:      req.TermMonths,
		Mode:      mode,
		Rate:      rate,
		StartDate: start,
	})
	if err != nil {
		h.writeEngineError(w, "Invalid loan terms", err)
		return
	}
	h.Metrics.ScheduleGenerated(mode)
	writeJSON(w, http.StatusOK, toScheduleDTO(schedule, charge))
}

// Health reports whether the database is reachable.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) asOf(r *http.Request) (generic.TimePoint, error) {
	return parseDateOr(r.URL.Query().Get("as_of"), h.Clock())
}

func parseDateOr(s string, def generic.TimePoint) (generic.TimePoint, error) {
	if s == "" {
		return def, nil
	}
	return generic.ParseDate(s)
}

func parseMoney(field, s string) (generic.Amount, error) {
	if s == "" {
		return generic.Amount{}, fmt.Errorf("%s is required", field)
	}
	a, err := generic.ParseAmount(s, generic.UnitCurrency)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("%s: %w", field, err)
	}
	return a, nil
}

func toPricingDTO(rec sqlite.PricingRecord) (PricingDTO, error) {
	var pj factory.PricingJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &pj); err != nil {
		return PricingDTO{}, err
	}
	dto := PricingDTO{
		ID:      rec.ID,
		Name:    rec.Name,
		Mode:    rec.Mode,
		Config:  pj,
		Version: rec.Version,
	}
	if !rec.UpdatedAt.IsZero() {
		dto.UpdatedAt = rec.UpdatedAt.Format(time.RFC3339)
	}
	return dto, nil
}

func loanDetail(l sqlite.LoanRecord, ev loan.Evaluation) LoanDetailDTO {
	return LoanDetailDTO{
		Loan:        toLoanDTO(l),
		Summary:     toSummaryDTO(ev.Summary),
		Overpayment: ev.Overpayment.String(),
	}
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err),
		errors.Is(err, sqlite.ErrPricingInUse),
		errors.Is(err, sqlite.ErrLoanExists):
		return http.StatusConflict
	case generic.IsClientError(err),
		pricing.IsConfigError(err),
		errors.Is(err, pricing.ErrKeyTypeMismatch),
		amortization.IsInputError(err),
		loan.IsClientError(err),
		errors.Is(err, loan.ErrEntryNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError writes err with the status it maps to. Internal errors
// are logged; rejections are counted.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error(message, zap.Error(err))
		writeError(w, status, message, err)
		return
	}
	h.Metrics.EngineError(err)
	writeErrorCode(w, status, message, ClassifyError(err), err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, message, "", err)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
