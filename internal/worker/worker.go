// Package worker dispatches job requests to the tester under per-kind
// deadlines and a bound on concurrently running jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/gatherer/respbuilder"
	"github.com/programme-lv/fnjudge/internal/governor"
	"github.com/programme-lv/fnjudge/internal/tester"
	"golang.org/x/sync/semaphore"
)

// Runner executes jobs; *tester.Tester implements it.
type Runner interface {
	RunSubmission(ctx context.Context, req *api.RunSubmission, gath tester.ResultGatherer) (*api.ExecutionResult, error)
	GenerateTests(ctx context.Context, req *api.GenerateTests, gath tester.ResultGatherer) ([]api.TestCase, error)
	RunCustomInput(ctx context.Context, req *api.RunCustomInput, gath tester.ResultGatherer) (*api.CustomRunResult, error)
}

type Config struct {
	RunTimeout      time.Duration
	GenerateTimeout time.Duration
	CustomTimeout   time.Duration
	MaxConcurrent   int64
}

func DefaultConfig() Config {
	return Config{
		RunTimeout:      90 * time.Second,
		GenerateTimeout: 120 * time.Second,
		CustomTimeout:   60 * time.Second,
		MaxConcurrent:   2,
	}
}

type Worker struct {
	runner Runner
	cfg    Config
	sem    *semaphore.Weighted
	stats  *Stats
	log    *slog.Logger
}

func New(runner Runner, cfg Config, log *slog.Logger) *Worker {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Worker{
		runner: runner,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		stats:  newStats(),
		log:    log,
	}
}

func (w *Worker) Stats() *Stats { return w.stats }

func (w *Worker) timeout(kind api.JobKind) time.Duration {
	switch kind {
	case api.GenerateTestsJob:
		return w.cfg.GenerateTimeout
	case api.RunCustomInputJob:
		return w.cfg.CustomTimeout
	default:
		return w.cfg.RunTimeout
	}
}

// Handle runs one job to completion and returns its response, which has
// also been sent to gath as the final event. It blocks while
// MaxConcurrent jobs are already running.
func (w *Worker) Handle(ctx context.Context, req api.JobRequest, gath tester.ResultGatherer) api.JobResponse {
	log := w.log.With("job_id", req.JobID, "kind", req.Kind)
	builder := respbuilder.New(req.JobID, req.Kind)
	g := tester.Tee(builder, gath)

	finish := func(out api.JobOutput, err error) api.JobResponse {
		resp := builder.Build(out, err)
		g.FinishJob(resp)
		return resp
	}

	if err := req.Validate(); err != nil {
		log.Warn("rejecting job", "err", err)
		return finish(api.JobOutput{}, err)
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return finish(api.JobOutput{}, fmt.Errorf("waiting for a free slot: %w", err))
	}
	defer w.sem.Release(1)
	w.stats.inFlight.Inc()

	limit := w.timeout(req.Kind)
	jobCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	log.Info("job started", "timeout", limit)
	out, err := w.dispatch(jobCtx, req, g)
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		var te *governor.TimeoutError
		if !errors.As(err, &te) {
			err = &governor.TimeoutError{After: limit}
		}
	}
	w.stats.finish(req.Kind, err == nil)

	resp := finish(out, err)
	if err != nil {
		log.Warn("job failed", "error_kind", resp.Error.Kind, "err", err)
	} else {
		log.Info("job finished", "total_ms", resp.TotalTimeMs)
	}
	return resp
}

func (w *Worker) dispatch(ctx context.Context, req api.JobRequest, gath tester.ResultGatherer) (api.JobOutput, error) {
	switch req.Kind {
	case api.RunSubmissionJob:
		res, err := w.runner.RunSubmission(ctx, req.RunSubmission, gath)
		return api.JobOutput{Result: res}, err
	case api.GenerateTestsJob:
		tests, err := w.runner.GenerateTests(ctx, req.GenerateTests, gath)
		return api.JobOutput{Tests: tests}, err
	case api.RunCustomInputJob:
		res, err := w.runner.RunCustomInput(ctx, req.RunCustomInput, gath)
		return api.JobOutput{Custom: res}, err
	}
	return api.JobOutput{}, fmt.Errorf("unknown job kind %q", req.Kind)
}
