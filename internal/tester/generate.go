package tester

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/governor"
)

// GenerateTests runs the reference solution on every input and records its
// output and fuel as the expected answer and budget of a new test. The
// reference is trusted, so any trap aborts generation.
func (t *Tester) GenerateTests(ctx context.Context, req *api.GenerateTests, gath ResultGatherer) ([]api.TestCase, error) {
	gath.StartJob(t.systemInfo)

	prefix := compiler.Prefix{"gen", req.SubmitterID}
	prog, err := t.build(ctx, prefix, req.ReferenceSource, api.Reference, symbolsOf(req.Inputs...), gath)
	if err != nil {
		return nil, err
	}

	tests := make([]api.TestCase, 0, len(req.Inputs))
	for i, in := range req.Inputs {
		tc := api.TestCase{ID: uuid.NewString(), Index: i, Input: in}
		gath.ReachTest(tc)

		res, err := prog.Run(ctx, in, governor.DefaultFuel)
		if err != nil {
			return nil, fmt.Errorf("reference on input %d: %w", i, err)
		}
		fuel := res.Fuel
		tc.ExpectedOutput = res.Output
		tc.MaxFuel = &fuel

		out := res.Output
		gath.FinishTest(api.TestOutcome{
			ID:             tc.ID,
			Index:          i,
			Success:        true,
			Input:          in,
			ExpectedOutput: res.Output,
			Output:         &out,
			Fuel:           fuel,
			MaxFuel:        &fuel,
		})
		t.log.Debug("test generated", "test_id", tc.ID, "fuel", fuel)
		tests = append(tests, tc)
	}
	return tests, nil
}
