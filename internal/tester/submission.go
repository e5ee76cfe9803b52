package tester

import (
	"context"
	"fmt"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/complexity"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/pkg/value"
)

// RunSubmission compiles the submission and judges it against the stored
// tests. When every test passes its growth class is estimated from the
// observed fuel.
func (t *Tester) RunSubmission(ctx context.Context, req *api.RunSubmission, gath ResultGatherer) (*api.ExecutionResult, error) {
	log := t.log.With("problem_id", req.ProblemID, "submitter_id", req.SubmitterID)
	gath.StartJob(t.systemInfo)

	calls := make([]value.Call, 0, len(req.Tests))
	for _, tc := range req.Tests {
		calls = append(calls, tc.Input)
	}
	prefix := compiler.Prefix{"subm", req.SubmitterID, req.ProblemID}
	prog, err := t.build(ctx, prefix, req.Source, api.Candidate, symbolsOf(calls...), gath)
	if err != nil {
		return nil, err
	}

	multiplier := req.FuelMultiplier
	if multiplier <= 0 {
		multiplier = t.cfg.FuelMultiplier
	}
	res, samples, err := t.RunSuite(ctx, prog, req.Tests, multiplier, gath)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	if res.OverallPassed && len(samples) >= 2 {
		class := complexity.Estimate(samples)
		res.Complexity = &class
	}
	log.Info("submission judged",
		"passed", len(res.PassedTests),
		"failed", len(res.FailedTests),
		"total_runtime", res.TotalRuntime)
	return &res, nil
}
