package loan

import (
	"context"
	"runtime"

	"github.com/warp/lending-engine/amortization"
	"github.com/warp/lending-engine/generic"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// BATCH - Many independent loans in parallel
// =============================================================================
// Loans share no mutable state, so batches shard by loan with a bounded
// worker count. A failing loan is reported in its own result and does not
// stop the batch; only ctx cancellation does.

type Job struct {
	LoanID generic.LoanID
	Terms  amortization.Terms
}

type JobResult struct {
	LoanID   generic.LoanID
	Schedule amortization.Schedule
	Err      error
}

// GenerateBatch generates a schedule per job. Results are in job order.
func GenerateBatch(ctx context.Context, jobs []Job, workers int) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := amortization.Generate(job.Terms)
			results[i] = JobResult{LoanID: job.LoanID, Schedule: s, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type EvaluationResult struct {
	LoanID     generic.LoanID
	Evaluation Evaluation
	Err        error
}

// EvaluateBatch evaluates every account as of asOf. Results are in input order.
func EvaluateBatch(ctx context.Context, accounts []Account, asOf generic.TimePoint, p Policy, workers int) ([]EvaluationResult, error) {
	results := make([]EvaluationResult, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))

	for i, a := range accounts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ev, err := Evaluate(a, asOf, p)
			results[i] = EvaluationResult{LoanID: a.ID, Evaluation: ev, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func workerCount(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}
