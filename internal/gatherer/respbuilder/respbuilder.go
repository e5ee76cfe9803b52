package respbuilder

import (
	"errors"
	"sync"
	"time"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/governor"
)

// Builder gathers job events and builds the final api.JobResponse.
type Builder struct {
	jobID string
	kind  api.JobKind

	mu           sync.Mutex
	systemInfo   string
	started      time.Time
	compilations []api.CompileInfo
}

func New(jobID string, kind api.JobKind) *Builder {
	return &Builder{
		jobID:        jobID,
		kind:         kind,
		started:      time.Now(),
		compilations: []api.CompileInfo{},
	}
}

// StartJob implements ResultGatherer.
func (b *Builder) StartJob(systemInfo string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemInfo = systemInfo
}

// StartCompile implements ResultGatherer.
func (b *Builder) StartCompile(api.Role) {}

// FinishCompile implements ResultGatherer.
func (b *Builder) FinishCompile(role api.Role, cached bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compilations = append(b.compilations, api.CompileInfo{Role: role, Cached: cached})
}

// ReachTest implements ResultGatherer.
func (b *Builder) ReachTest(api.TestCase) {}

// FinishTest implements ResultGatherer. Outcomes reach the response through
// the job output, already aggregated.
func (b *Builder) FinishTest(api.TestOutcome) {}

// FinishJob implements ResultGatherer.
func (b *Builder) FinishJob(api.JobResponse) {}

// Build assembles the response. A non-nil err discards out.
func (b *Builder) Build(out api.JobOutput, err error) api.JobResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	resp := api.JobResponse{
		JobID:        b.jobID,
		Kind:         b.kind,
		Status:       api.Success,
		Compilations: append([]api.CompileInfo(nil), b.compilations...),
		StartTime:    b.started.Format(time.RFC3339),
		FinishTime:   now.Format(time.RFC3339),
		TotalTimeMs:  now.Sub(b.started).Milliseconds(),
	}
	if b.systemInfo != "" {
		info := b.systemInfo
		resp.SystemInfo = &info
	}
	if err != nil {
		resp.Status = api.Failure
		resp.Error = Classify(err)
		return resp
	}
	resp.JobOutput = out
	return resp
}

// Classify maps an error of a job onto its wire representation.
func Classify(err error) *api.JobError {
	var (
		ce *compiler.CompileError
		re *governor.RuntimeError
		te *governor.TimeoutError
	)
	switch {
	case errors.As(err, &ce):
		diags := make([]api.Diagnostic, 0, len(ce.Diagnostics))
		for _, d := range ce.Diagnostics {
			diags = append(diags, api.Diagnostic{
				Line:    d.Line,
				Column:  d.Column,
				Kind:    string(d.Kind),
				Message: d.Message,
			})
		}
		return &api.JobError{Kind: api.CompilationError, Message: ce.Error(), Diagnostics: diags, Stderr: ce.Stderr}
	case errors.As(err, &re):
		return &api.JobError{Kind: api.RuntimeError, Message: re.Error()}
	case errors.As(err, &te):
		return &api.JobError{Kind: api.TimeoutError, Message: te.Error()}
	default:
		return &api.JobError{Kind: api.InternalServerError, Message: err.Error()}
	}
}
