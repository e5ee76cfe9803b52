package worker_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/tester"
	"github.com/programme-lv/fnjudge/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	delay   time.Duration
	err     error
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRunner) enter(ctx context.Context) error {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRunner) RunSubmission(ctx context.Context, _ *api.RunSubmission, gath tester.ResultGatherer) (*api.ExecutionResult, error) {
	gath.StartJob("test")
	gath.FinishCompile(api.Candidate, false)
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return &api.ExecutionResult{OverallPassed: true}, nil
}

func (f *fakeRunner) GenerateTests(ctx context.Context, _ *api.GenerateTests, _ tester.ResultGatherer) ([]api.TestCase, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return []api.TestCase{{ID: "g0"}}, nil
}

func (f *fakeRunner) RunCustomInput(ctx context.Context, _ *api.RunCustomInput, _ tester.ResultGatherer) (*api.CustomRunResult, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return &api.CustomRunResult{Stdout: "hi"}, nil
}

type finishRecorder struct {
	mu    sync.Mutex
	resps []api.JobResponse
}

func (r *finishRecorder) StartJob(string) {}
func (r *finishRecorder) StartCompile(api.Role) {}
func (r *finishRecorder) FinishCompile(api.Role, bool) {}
func (r *finishRecorder) ReachTest(api.TestCase) {}
func (r *finishRecorder) FinishTest(api.TestOutcome) {}
func (r *finishRecorder) FinishJob(resp api.JobResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resps = append(r.resps, resp)
}

func newWorker(r worker.Runner, cfg worker.Config) *worker.Worker {
	return worker.New(r, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleDispatchesByKind(t *testing.T) {
	w := newWorker(&fakeRunner{}, worker.DefaultConfig())
	ctx := context.Background()

	rec := &finishRecorder{}
	resp := w.Handle(ctx, api.JobRequest{JobID: "1", Kind: api.RunSubmissionJob, RunSubmission: &api.RunSubmission{}}, rec)
	assert.Equal(t, api.Success, resp.Status)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.OverallPassed)
	assert.Equal(t, []api.CompileInfo{{Role: api.Candidate}}, resp.Compilations)
	require.Len(t, rec.resps, 1)
	assert.Equal(t, "1", rec.resps[0].JobID)

	resp = w.Handle(ctx, api.JobRequest{JobID: "2", Kind: api.GenerateTestsJob, GenerateTests: &api.GenerateTests{}}, &finishRecorder{})
	assert.Len(t, resp.Tests, 1)

	resp = w.Handle(ctx, api.JobRequest{JobID: "3", Kind: api.RunCustomInputJob, RunCustomInput: &api.RunCustomInput{}}, &finishRecorder{})
	require.NotNil(t, resp.Custom)
	assert.Equal(t, "hi", resp.Custom.Stdout)

	snap := w.Stats().Snapshot()
	assert.Zero(t, snap.InFlight)
	assert.Equal(t, int64(1), snap.Done[api.GenerateTestsJob])
}

func TestHandleRejectsInvalidRequest(t *testing.T) {
	w := newWorker(&fakeRunner{}, worker.DefaultConfig())
	resp := w.Handle(context.Background(), api.JobRequest{JobID: "x", Kind: api.RunSubmissionJob}, &finishRecorder{})
	assert.Equal(t, api.Failure, resp.Status)
	assert.Equal(t, api.InternalServerError, resp.Error.Kind)
}

func TestHandleMapsErrors(t *testing.T) {
	w := newWorker(&fakeRunner{err: &compiler.CompileError{}}, worker.DefaultConfig())
	resp := w.Handle(context.Background(), api.JobRequest{JobID: "c", Kind: api.RunSubmissionJob, RunSubmission: &api.RunSubmission{}}, &finishRecorder{})
	assert.Equal(t, api.CompilationError, resp.Error.Kind)
	assert.Nil(t, resp.Result)
	assert.Equal(t, int64(1), w.Stats().Snapshot().Failed)
}

func TestHandleJobDeadlineIsTimeout(t *testing.T) {
	cfg := worker.DefaultConfig()
	cfg.RunTimeout = 50 * time.Millisecond
	w := newWorker(&fakeRunner{delay: time.Second}, cfg)

	resp := w.Handle(context.Background(), api.JobRequest{JobID: "t", Kind: api.RunSubmissionJob, RunSubmission: &api.RunSubmission{}}, &finishRecorder{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, api.TimeoutError, resp.Error.Kind)
}

func TestHandleBoundsConcurrency(t *testing.T) {
	cfg := worker.DefaultConfig()
	cfg.MaxConcurrent = 2
	r := &fakeRunner{delay: 30 * time.Millisecond}
	w := newWorker(r, cfg)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Handle(context.Background(), api.JobRequest{JobID: "p", Kind: api.GenerateTestsJob, GenerateTests: &api.GenerateTests{}}, &finishRecorder{})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, r.peak.Load(), int32(2))
	assert.Equal(t, int64(6), w.Stats().Snapshot().Done[api.GenerateTestsJob])
}
