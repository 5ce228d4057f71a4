package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"golang.org/x/time/rate"
)

// BatchOpts contains configuration for batch generations.
type BatchOpts struct {
	Workers   int     // Concurrent generations (default: 2, max: 8)
	RateLimit float64 // Submissions per second (default: 1)
}

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Index   int
	Request models.GenerationRequest
	Outcome models.Outcome
}

// BatchSummary aggregates a finished batch.
type BatchSummary struct {
	Results   []BatchResult // in request order
	Succeeded int
	Failed    int
	TimedOut  int
}

type batchJob struct {
	index int
	req   models.GenerationRequest
}

// BatchRun runs independent generations with a worker pool paced by a token bucket.
//
// Every request yields a result. Requests not dispatched before ctx ends are reported as canceled.
func BatchRun(
	ctx context.Context,
	gen Generator,
	reqs []models.GenerationRequest,
	opts BatchOpts,
	prog chan<- ProgressUpdate,
) (*BatchSummary, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: generator not initialized", shared.ErrServiceUnavailable)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no requests", shared.ErrMissingArgument)
	}

	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Workers > 8 {
		opts.Workers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan batchJob, len(reqs))
	results := make(chan BatchResult, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go batchWorker(ctx, &wg, gen, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, req := range reqs {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(reqs); j++ {
					results <- BatchResult{Index: j, Request: reqs[j], Outcome: models.Failed(contextFailure(ctx.Err()), "", 0)}
				}
				return
			}
			jobs <- batchJob{index: i, req: req}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &BatchSummary{Results: make([]BatchResult, len(reqs))}
	done := 0
	for res := range results {
		done++
		summary.Results[res.Index] = res

		switch res.Outcome.Kind {
		case models.OutcomeSuccess:
			summary.Succeeded++
		case models.OutcomeTimeout:
			summary.TimedOut++
		default:
			summary.Failed++
		}
		sendProgress(prog, batchUpdate(done, len(reqs), res))
	}

	return summary, nil
}

// batchWorker runs jobs until the channel closes.
func batchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	gen Generator,
	jobs <-chan batchJob,
	results chan<- BatchResult,
) {
	defer wg.Done()

	for job := range jobs {
		results <- BatchResult{Index: job.index, Request: job.req, Outcome: gen.Run(ctx, job.req, nil)}
	}
}
