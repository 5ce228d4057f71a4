package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/services"
	"github.com/desertthunder/animx/internal/shared"
)

// DefaultRequestTimeout bounds one generation from submission to outcome.
const DefaultRequestTimeout = 120 * time.Second

// recordTimeout bounds how long storing an outcome may take once the request is done.
const recordTimeout = 5 * time.Second

// Recorder stores finished generations.
type Recorder interface {
	Create(ctx context.Context, rec *models.GenerationRecord) error
}

// Generator runs a single generation to its outcome.
type Generator interface {
	Run(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) models.Outcome
}

// EngineOpts configures a [GenerationEngine].
type EngineOpts struct {
	Client         services.TaskClient
	Interval       time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
	Recorder       Recorder // optional
	Logger         *log.Logger
}

// GenerationEngine implements [Generator] on top of a [services.TaskClient].
//
// State is local to each Run call, so one engine serves concurrent requests.
type GenerationEngine struct {
	client   services.TaskClient
	poller   *Poller
	recorder Recorder
	timeout  time.Duration
	logger   *log.Logger
}

// NewGenerationEngine creates an engine from opts.
func NewGenerationEngine(opts EngineOpts) *GenerationEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	logger := shared.WithLogger(opts.Logger, "component", "engine")

	return &GenerationEngine{
		client:   opts.Client,
		poller:   NewPoller(opts.Client, opts.Interval, opts.MaxAttempts, logger),
		recorder: opts.Recorder,
		timeout:  opts.RequestTimeout,
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run validates req, submits it and resolves exactly one outcome.
//
// Validation and configuration failures return before any network call.
// The request deadline covers submission and polling; hitting it yields [shared.ErrRequestTimeout].
func (e *GenerationEngine) Run(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) models.Outcome {
	sendProgress(progress, validateUpdate(req))

	if err := req.Validate(); err != nil {
		out := models.Failed(err, "", 0)
		sendProgress(progress, completeUpdate(out))
		return out
	}
	if e.client == nil || !e.client.Configured() {
		e.logger.Error("provider credential missing")
		out := models.Failed(fmt.Errorf("%w: provider API key is not configured", shared.ErrMissingCredentials), "", 0)
		sendProgress(progress, completeUpdate(out))
		return out
	}

	started := time.Now()
	out := e.run(ctx, req, progress)

	logger := shared.WithLogger(e.logger, "mode", req.Mode, "task_id", out.TaskID, "attempts", out.Attempts, "elapsed", time.Since(started).Round(time.Millisecond))
	if out.OK() {
		logger.Info("generation succeeded", "images", len(out.ImageURLs))
	} else {
		logger.Warn("generation did not succeed", "outcome", out.Kind, "err", out.Err)
	}

	e.record(ctx, req, out)
	sendProgress(progress, completeUpdate(out))
	return out
}

func (e *GenerationEngine) run(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) models.Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sendProgress(progress, submitUpdate(req))

	sub, err := e.client.CreateTask(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Failed(contextFailure(ctxErr), "", 0)
		}
		return models.Failed(err, "", 0)
	}

	if sub.Synchronous() {
		e.logger.Debug("provider answered synchronously", "images", len(sub.ResultURLs))
		return models.Succeeded(sub.ResultURLs, "", 0)
	}

	return e.poller.Poll(ctx, sub.TaskID, progress)
}

// record stores out when a recorder is configured; failures are logged only.
func (e *GenerationEngine) record(ctx context.Context, req models.GenerationRequest, out models.Outcome) {
	if e.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := e.recorder.Create(ctx, models.NewGenerationRecord(req, out)); err != nil {
		e.logger.Error("failed to record generation", "err", err)
	}
}
