/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract. Money and rates are
  rendered as fixed-scale strings ("120.00", "12.0000") so clients never
  see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Pricing:   PricingDTO, ResolveRequest, ResolveDTO, ChargesRequest
  Loans:     CreateLoanRequest, RestructureRequest, LoanDTO, LoanDetailDTO
  Schedules: PreviewRequest, ScheduleDTO, EntryDTO
  Payments:  RecordPaymentRequest, PaymentDTO, PaymentResultDTO
  Waivers:   WaiverRequest
  Guide:     SummaryDTO, GuideDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/pricing.go: PricingJSON type
*/
package api

import (
	"time"

	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/loan"
	"github.com/warp/lending-engine/store/sqlite"
)

// =============================================================================
// PRICING
// =============================================================================

// PricingDTO represents a stored pricing configuration.
type PricingDTO struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Mode      string              `json:"mode"`
	Config    factory.PricingJSON `json:"config"`
	Version   int                 `json:"version"`
	UpdatedAt string              `json:"updated_at,omitempty"`
}

// ResolveRequest carries the loan parameters a product is priced by.
type ResolveRequest struct {
	Principal  string `json:"principal"`
	StartDate  string `json:"start_date"`
	TermMonths int    `json:"term_months"`
}

type ResolveDTO struct {
	ProductID string `json:"product_id"`
	Mode      string `json:"mode"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value"`
	Unit      string `json:"unit"`
}

// ChargesRequest looks up the charges matrix. Empty Mode returns the row.
type ChargesRequest struct {
	Principal string `json:"principal"`
	Mode      string `json:"mode,omitempty"`
}

// =============================================================================
// LOANS
// =============================================================================

type CreateLoanRequest struct {
	ID          string `json:"id,omitempty"`
	ProductID   string `json:"product_id"`
	Borrower    string `json:"borrower"`
	Principal   string `json:"principal"`
	TermMonths  int    `json:"term_months"`
	PaymentMode string `json:"payment_mode"`
	StartDate   string `json:"start_date"`
}

// RestructureRequest replaces a loan's terms. Empty fields keep the
// current value.
type RestructureRequest struct {
	Principal   string `json:"principal,omitempty"`
	TermMonths  int    `json:"term_months,omitempty"`
	PaymentMode string `json:"payment_mode,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
}

type LoanDTO struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	Borrower      string `json:"borrower"`
	Principal     string `json:"principal"`
	TermMonths    int    `json:"term_months"`
	PaymentMode   string `json:"payment_mode"`
	AnnualRate    string `json:"annual_rate"`
	ServiceCharge string `json:"service_charge"`
	StartDate     string `json:"start_date"`
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type LoanDetailDTO struct {
	Loan        LoanDTO    `json:"loan"`
	Summary     SummaryDTO `json:"summary"`
	Overpayment string     `json:"overpayment"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// PreviewRequest generates a schedule without booking a loan. Either
// ProductID or AnnualRate must be given.
type PreviewRequest struct {
	ProductID   string `json:"product_id,omitempty"`
	AnnualRate  string `json:"annual_rate,omitempty"`
	Principal   string `json:"principal"`
	TermMonths  int    `json:"term_months"`
	PaymentMode string `json:"payment_mode"`
	StartDate   string `json:"start_date"`
}

type EntryDTO struct {
	Sequence           int    `json:"sequence"`
	PeriodStart        string `json:"period_start"`
	DueDate            string `json:"due_date"`
	Principal          string `json:"principal"`
	Interest           string `json:"interest"`
	Fines              string `json:"fines"`
	AmountDue          string `json:"amount_due"`
	RemainingPrincipal string `json:"remaining_principal"`
	Paid               string `json:"paid"`
	Balance            string `json:"balance"`
	Status             string `json:"status"`
	LastPaymentDate    string `json:"last_payment_date,omitempty"`
}

type ScheduleDTO struct {
	LoanID         string     `json:"loan_id,omitempty"`
	AsOf           string     `json:"as_of,omitempty"`
	Principal      string     `json:"principal"`
	TermMonths     int        `json:"term_months"`
	PaymentMode    string     `json:"payment_mode"`
	AnnualRate     string     `json:"annual_rate"`
	ServiceCharge  string     `json:"service_charge"`
	StartDate      string     `json:"start_date"`
	MaturityDate   string     `json:"maturity_date"`
	TotalPrincipal string     `json:"total_principal"`
	TotalInterest  string     `json:"total_interest"`
	TotalDue       string     `json:"total_due"`
	Entries        []EntryDTO `json:"entries"`
}

// =============================================================================
// PAYMENTS AND WAIVERS
// =============================================================================

// RecordPaymentRequest records a payment, or a reversal when ReversesID is set.
type RecordPaymentRequest struct {
	Amount         string `json:"amount,omitempty"`
	PaidAt         string `json:"paid_at"`
	ReversesID     string `json:"reverses_id,omitempty"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PaymentDTO struct {
	ID             string `json:"id"`
	LoanID         string `json:"loan_id"`
	Kind           string `json:"kind"`
	PaidAt         string `json:"paid_at"`
	Amount         string `json:"amount"`
	ReversesID     string `json:"reverses_id,omitempty"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// PaymentListDTO is a loan's ledger, optionally limited to a date range.
// TotalPaid sums effective payments made on or before AsOf.
type PaymentListDTO struct {
	Payments  []PaymentDTO `json:"payments"`
	TotalPaid string       `json:"total_paid"`
	AsOf      string       `json:"as_of"`
}

type PaymentResultDTO struct {
	Payment     PaymentDTO `json:"payment"`
	Summary     SummaryDTO `json:"summary"`
	Overpayment string     `json:"overpayment"`
}

type WaiverRequest struct {
	Sequence int    `json:"sequence"`
	Reason   string `json:"reason,omitempty"`
}

// =============================================================================
// SUMMARY AND GUIDE
// =============================================================================

type SummaryDTO struct {
	LoanID              string `json:"loan_id"`
	AsOf                string `json:"as_of"`
	Status              string `json:"status"`
	TotalAmountDue      string `json:"total_amount_due"`
	AmountPaid          string `json:"amount_paid"`
	TotalFines          string `json:"total_fines"`
	CurrentBalance      string `json:"current_balance"`
	OverdueAmount       string `json:"overdue_amount"`
	NextDueDate         string `json:"next_due_date,omitempty"`
	DaysOverdue         int    `json:"days_overdue"`
	Installments        int    `json:"installments"`
	PaidInstallments    int    `json:"paid_installments"`
	OverdueInstallments int    `json:"overdue_installments"`
}

type GuideDTO struct {
	AsOf             string       `json:"as_of"`
	ActiveLoans      int          `json:"active_loans"`
	CompletedLoans   int          `json:"completed_loans"`
	DefaultedLoans   int          `json:"defaulted_loans"`
	TotalOutstanding string       `json:"total_outstanding"`
	TotalOverdue     string       `json:"total_overdue"`
	Loans            []SummaryDTO `json:"loans"`
	Errors           []LoanErrDTO `json:"errors,omitempty"`
}

// LoanErrDTO reports a loan the guide could not evaluate.
type LoanErrDTO struct {
	LoanID string `json:"loan_id"`
	Error  string `json:"error"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLoanDTO(l sqlite.LoanRecord) LoanDTO {
	dto := LoanDTO{
		ID:            string(l.ID),
		ProductID:     l.ProductID,
		Borrower:      l.Borrower,
		Principal:     l.Principal.String(),
		TermMonths:    l.TermMonths,
		PaymentMode:   l.Mode.String(),
		AnnualRate:    rateString(l.AnnualRate),
		ServiceCharge: l.ServiceCharge.String(),
		StartDate:     l.StartDate.String(),
		Version:       l.Version,
	}
	if !l.CreatedAt.IsZero() {
		dto.CreatedAt = l.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toScheduleDTO(s amortization.Schedule, serviceCharge generic.Amount) ScheduleDTO {
	entries := make([]EntryDTO, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = EntryDTO{
			Sequence:           e.Sequence,
			PeriodStart:        e.PeriodStart.String(),
			DueDate:            e.DueDate.String(),
			Principal:          e.Principal.String(),
			Interest:           e.Interest.String(),
			Fines:              e.Fines.String(),
			AmountDue:          e.AmountDue.String(),
			RemainingPrincipal: e.RemainingPrincipal.String(),
			Paid:               e.Paid.String(),
			Balance:            e.Balance.String(),
			Status:             string(e.Status),
		}
		if !e.LastPaymentDate.IsZero() {
			entries[i].LastPaymentDate = e.LastPaymentDate.String()
		}
	}
	return ScheduleDTO{
		Principal:      s.Terms.Principal.String(),
		TermMonths:     s.Terms.Term,
		PaymentMode:    s.Terms.Mode.String(),
		AnnualRate:     rateString(s.Terms.Rate),
		ServiceCharge:  serviceCharge.String(),
		StartDate:      s.Terms.StartDate.String(),
		MaturityDate:   s.MaturityDate().String(),
		TotalPrincipal: s.TotalPrincipal.String(),
		TotalInterest:  s.TotalInterest.String(),
		TotalDue:       s.TotalDue.String(),
		Entries:        entries,
	}
}

func toSummaryDTO(s loan.AccountSummary) SummaryDTO {
	dto := SummaryDTO{
		LoanID:              string(s.LoanID),
		AsOf:                s.AsOf.String(),
		Status:              string(s.Status),
		TotalAmountDue:      s.TotalAmountDue.String(),
		AmountPaid:          s.AmountPaid.String(),
		TotalFines:          s.TotalFines.String(),
		CurrentBalance:      s.CurrentBalance.String(),
		OverdueAmount:       s.OverdueAmount.String(),
		DaysOverdue:         s.DaysOverdue,
		Installments:        s.Installments,
		PaidInstallments:    s.PaidInstallments,
		OverdueInstallments: s.OverdueInstallments,
	}
	if !s.NextDueDate.IsZero() {
		dto.NextDueDate = s.NextDueDate.String()
	}
	return dto
}

func toPaymentDTO(p generic.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:             string(p.ID),
		LoanID:         string(p.LoanID),
		Kind:           string(p.Kind),
		PaidAt:         p.PaidAt.String(),
		Amount:         p.Amount.String(),
		ReversesID:     string(p.ReversesID),
		Reference:      p.Reference,
		IdempotencyKey: p.IdempotencyKey,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// rateString renders a percentage without the "%" suffix.
func rateString(rate generic.Amount) string {
	return rate.Value.StringFixed(generic.UnitPercent.Scale())
}
