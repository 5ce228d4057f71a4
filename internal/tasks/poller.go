package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 20
)

// StatusClient queries the state of one provider task.
type StatusClient interface {
	GetTask(ctx context.Context, taskID string) (*models.TaskStatus, error)
}

// Poller drives a created task to a terminal state within a fixed attempt budget.
//
// The first query is issued immediately and the interval separates consecutive queries.
// A Poller carries no per-task state and may be shared between requests.
type Poller struct {
	client      StatusClient
	interval    time.Duration
	maxAttempts int
	logger      *log.Logger
}

// NewPoller creates a Poller, substituting defaults for non-positive values.
func NewPoller(client StatusClient, interval time.Duration, maxAttempts int, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{client: client, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Poll queries taskID until a terminal state, the attempt budget, or ctx ends it.
//
// A query that fails to reach the provider consumes an attempt and is only reported when it was the last one.
func (p *Poller) Poll(ctx context.Context, taskID string, progress chan<- ProgressUpdate) models.Outcome {
	logger := shared.WithLogger(p.logger, "task_id", taskID)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx); err != nil {
				return models.Failed(contextFailure(err), taskID, attempt-1)
			}
		}

		sendProgress(progress, pollUpdate(attempt, p.maxAttempts, taskID))

		status, err := p.client.GetTask(ctx, taskID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.Failed(contextFailure(ctxErr), taskID, attempt)
			}
			if errors.Is(err, shared.ErrMissingCredentials) {
				return models.Failed(err, taskID, attempt)
			}
			logger.Warn("status query failed", "attempt", attempt, "max", p.maxAttempts, "err", err)
			lastErr = err
			continue
		}
		lastErr = nil

		logger.Debug("task status", "attempt", attempt, "max", p.maxAttempts, "state", status.State)
		sendProgress(progress, stateUpdate(attempt, p.maxAttempts, status))

		switch status.State {
		case models.StatePending, models.StateRunning:
			continue
		case models.StateSucceeded:
			if len(status.ResultURLs) == 0 {
				logger.Error("task succeeded without results", "attempt", attempt, "code", status.Code, "message", status.Message)
				return models.Failed(shared.ErrResultMissing, taskID, attempt)
			}
			return models.Succeeded(status.ResultURLs, taskID, attempt)
		case models.StateFailed:
			reason := status.Message
			if reason == "" {
				reason = "unknown reason"
			}
			logger.Warn("task failed", "attempt", attempt, "code", status.Code, "message", status.Message)
			return models.Failed(fmt.Errorf("%w: %s", shared.ErrProviderFailure, reason), taskID, attempt)
		default:
			logger.Error("unrecognized task status", "attempt", attempt, "status", status.Raw)
			return models.Failed(fmt.Errorf("%w: %q", shared.ErrUnknownStatus, status.Raw), taskID, attempt)
		}
	}

	if lastErr != nil {
		return models.Failed(lastErr, taskID, p.maxAttempts)
	}
	logger.Warn("polling budget exhausted", "attempts", p.maxAttempts, "interval", p.interval)
	return models.TimedOut(taskID, p.maxAttempts)
}

// wait suspends for one interval or until ctx is done.
func (p *Poller) wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// contextFailure maps a context error onto the request-level sentinels.
func contextFailure(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", shared.ErrRequestTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", shared.ErrRequestCanceled, err)
	default:
		return err
	}
}
