/*
scheduler.go - Periodic overdue sweep

PURPOSE:
  Periodically evaluates the whole portfolio as of today, so overdue
  installments, accrued fines and defaulted loans show up in metrics and
  logs without anyone asking for the guide.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each sweep is Handler.Portfolio as of the handler's clock
  - Nothing is written: the sweep only observes. Loan state is always
    derived from the schedule and the ledger.
  - Portfolio gauges are set from the sweep; defaulted loans are logged

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewOverdueScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - portfolio.go: Handler.Portfolio
  - metrics.go: Portfolio gauges
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/lending-engine/loan"
	"go.uber.org/zap"
)

// SweepResult is the outcome of one sweep.
type SweepResult struct {
	RanAt          time.Time
	AsOf           string
	Active         int
	Completed      int
	Defaulted      int
	Failed         int
	TotalOverdue   string
	DefaultedLoans []string
}

// OverdueScheduler sweeps the portfolio on a timer.
type OverdueScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *SweepResult
}

// NewOverdueScheduler creates a new scheduler.
func NewOverdueScheduler(handler *Handler) *OverdueScheduler {
	return &OverdueScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (s *OverdueScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.Handler.Log.Named("scheduler")
	if !s.Enabled {
		log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker.C, s.stop)

	log.Info("started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Handler.Log.Named("scheduler").Info("stopped")
	}
}

func (s *OverdueScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweepLogged()

	for {
		select {
		case <-tick:
			s.sweepLogged()
		case <-stop:
			return
		}
	}
}

func (s *OverdueScheduler) sweepLogged() {
	if _, err := s.RunNow(context.Background()); err != nil {
		s.Handler.Log.Named("scheduler").Error("sweep failed", zap.Error(err))
	}
}

// RunNow sweeps immediately (for testing/admin).
func (s *OverdueScheduler) RunNow(ctx context.Context) (SweepResult, error) {
	log := s.Handler.Log.Named("scheduler")

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	asOf := s.Handler.Clock()
	g, failed, err := s.Handler.Portfolio(ctx, asOf)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{
		RanAt:        time.Now().UTC(),
		AsOf:         asOf.String(),
		Active:       g.ActiveLoans,
		Completed:    g.CompletedLoans,
		Defaulted:    g.DefaultedLoans,
		Failed:       len(failed),
		TotalOverdue: g.TotalOverdue.String(),
	}
	for _, sum := range g.Loans {
		if sum.Status != loan.StatusDefaulted {
			continue
		}
		res.DefaultedLoans = append(res.DefaultedLoans, string(sum.LoanID))
		log.Warn("loan defaulted",
			zap.String("loan_id", string(sum.LoanID)),
			zap.Int("days_overdue", sum.DaysOverdue),
			zap.String("overdue_amount", sum.OverdueAmount.String()),
			zap.String("total_fines", sum.TotalFines.String()),
		)
	}

	log.Info("sweep complete",
		zap.String("as_of", res.AsOf),
		zap.Int("active", res.Active),
		zap.Int("completed", res.Completed),
		zap.Int("defaulted", res.Defaulted),
		zap.Int("failed", res.Failed),
		zap.String("total_overdue", res.TotalOverdue),
	)

	s.lastMu.Lock()
	s.last = &res
	s.lastMu.Unlock()
	return res, nil
}

// Last returns the most recent sweep, or nil before the first one.
func (s *OverdueScheduler) Last() *SweepResult {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// timeout bounds one sweep to the check interval.
func (s *OverdueScheduler) timeout() time.Duration {
	if s.CheckInterval <= 0 {
		return time.Minute
	}
	return s.CheckInterval
}
