package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/loan"
	"github.com/warp/lending-engine/pricing"
	"github.com/warp/lending-engine/store/sqlite"
)

// =============================================================================
// METRICS - Prometheus instrumentation
// =============================================================================

// Error kinds used as the "kind" label of lending_engine_errors_total.
const (
	ErrorKindInvalidRange      = "invalid_range"
	ErrorKindOverlap           = "overlap"
	ErrorKindNoMatchingTier    = "no_matching_tier"
	ErrorKindKeyMismatch       = "key_type_mismatch"
	ErrorKindMutuallyExclusive = "mutually_exclusive_pricing"
	ErrorKindInvalidValue      = "invalid_value"
	ErrorKindInvalidPrincipal  = "invalid_principal"
	ErrorKindInvalidTerm       = "invalid_term"
	ErrorKindInvalidRate       = "invalid_rate"
	ErrorKindUnknownMode       = "unknown_payment_mode"
	ErrorKindInvalidPayment    = "invalid_payment"
	ErrorKindInstallment       = "installment"
	ErrorKindNotFound          = "not_found"
	ErrorKindConflict          = "conflict"
	ErrorKindOther             = "other"
)

// Metrics holds the service's collectors on its own registry, so tests
// can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	schedulesGenerated *prometheus.CounterVec
	engineErrors       *prometheus.CounterVec
	paymentsRecorded   *prometheus.CounterVec
	loansByStatus      *prometheus.GaugeVec
	totalOutstanding   prometheus.Gauge
	totalOverdue       prometheus.Gauge
	evalDuration       prometheus.Histogram
}

// NewMetrics registers the collectors, plus Go runtime and process
// collectors, on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		schedulesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_engine_schedules_generated_total",
			Help: "Schedules generated for submitted terms (booking, restructuring, preview), by payment mode.",
		}, []string{"mode"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_engine_errors_total",
			Help: "Engine errors returned to callers, by kind.",
		}, []string{"kind"}),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_engine_payments_recorded_total",
			Help: "Payment events appended to the ledger, by kind.",
		}, []string{"kind"}),
		loansByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lending_engine_portfolio_loans",
			Help: "Loans in the portfolio by status, as of the last evaluation.",
		}, []string{"status"}),
		totalOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_engine_portfolio_outstanding",
			Help: "Total current balance across loans, as of the last evaluation.",
		}),
		totalOverdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lending_engine_portfolio_overdue",
			Help: "Total overdue amount across loans, as of the last evaluation.",
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lending_engine_portfolio_evaluation_duration_seconds",
			Help:    "Time to evaluate the whole portfolio.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	reg.MustRegister(
		m.schedulesGenerated,
		m.engineErrors,
		m.paymentsRecorded,
		m.loansByStatus,
		m.totalOutstanding,
		m.totalOverdue,
		m.evalDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ScheduleGenerated counts a schedule built for terms a caller submitted.
func (m *Metrics) ScheduleGenerated(mode generic.PaymentMode) {
	m.schedulesGenerated.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) PaymentRecorded(kind generic.PaymentKind) {
	m.paymentsRecorded.WithLabelValues(string(kind)).Inc()
}

// EngineError counts err under its kind. Nil is ignored.
func (m *Metrics) EngineError(err error) {
	if err == nil {
		return
	}
	m.engineErrors.WithLabelValues(ClassifyError(err)).Inc()
}

// ObserveGuide sets the portfolio gauges from a freshly built guide and
// records how long it took to build.
func (m *Metrics) ObserveGuide(g loan.Guide, took time.Duration) {
	m.loansByStatus.WithLabelValues(string(loan.StatusActive)).Set(float64(g.ActiveLoans))
	m.loansByStatus.WithLabelValues(string(loan.StatusCompleted)).Set(float64(g.CompletedLoans))
	m.loansByStatus.WithLabelValues(string(loan.StatusDefaulted)).Set(float64(g.DefaultedLoans))
	m.totalOutstanding.Set(g.TotalOutstanding.Value.InexactFloat64())
	m.totalOverdue.Set(g.TotalOverdue.Value.InexactFloat64())
	m.evalDuration.Observe(took.Seconds())
}

// ClassifyError maps an error to its metric kind.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, generic.ErrInvalidRange),
		errors.Is(err, generic.ErrInvalidPeriod):
		return ErrorKindInvalidRange
	case errors.Is(err, generic.ErrOverlap):
		return ErrorKindOverlap
	case errors.Is(err, generic.ErrNoMatchingTier):
		return ErrorKindNoMatchingTier
	case errors.Is(err, pricing.ErrKeyTypeMismatch):
		return ErrorKindKeyMismatch
	case errors.Is(err, pricing.ErrMutuallyExclusivePricing):
		return ErrorKindMutuallyExclusive
	case errors.Is(err, pricing.ErrNegativeValue),
		errors.Is(err, pricing.ErrScale),
		errors.Is(err, pricing.ErrDuplicateColumn),
		errors.Is(err, pricing.ErrColumnCount):
		return ErrorKindInvalidValue
	case errors.Is(err, amortization.ErrInvalidPrincipal):
		return ErrorKindInvalidPrincipal
	case errors.Is(err, amortization.ErrInvalidTerm):
		return ErrorKindInvalidTerm
	case errors.Is(err, amortization.ErrInvalidRate):
		return ErrorKindInvalidRate
	case errors.Is(err, generic.ErrUnknownPaymentMode):
		return ErrorKindUnknownMode
	case errors.Is(err, generic.ErrInvalidPayment),
		errors.Is(err, loan.ErrNonPositivePayment),
		errors.Is(err, loan.ErrPaymentScale):
		return ErrorKindInvalidPayment
	case errors.Is(err, loan.ErrEntryNotFound),
		errors.Is(err, loan.ErrEntrySettled):
		return ErrorKindInstallment
	case generic.IsNotFound(err):
		return ErrorKindNotFound
	case generic.IsConflict(err),
		errors.Is(err, sqlite.ErrPricingInUse),
		errors.Is(err, sqlite.ErrLoanExists):
		return ErrorKindConflict
	default:
		return ErrorKindOther
	}
}
