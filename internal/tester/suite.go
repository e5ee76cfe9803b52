package tester

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/complexity"
	"github.com/programme-lv/fnjudge/internal/governor"
	"github.com/programme-lv/fnjudge/pkg/value"
)

const FuelLimitExceeded = "fuel limit exceeded"

// budget is the fuel a test may spend. The meter itself gets twice the
// limit so that a slow but finishing run is judged by the post-check and
// only a runaway one is cut off inside the guest.
type budget struct {
	limit   uint64
	limited bool
	meter   uint64
}

func budgetFor(maxFuel *uint64, multiplier float64) budget {
	if maxFuel == nil {
		return budget{limit: governor.DefaultFuel, meter: governor.DefaultFuel}
	}
	scaled := math.Ceil(float64(*maxFuel) * multiplier)
	limit := governor.DefaultFuel
	if scaled < float64(governor.DefaultFuel) {
		limit = uint64(scaled)
	}
	meter := min(2*limit, governor.DefaultFuel)
	return budget{limit: limit, limited: true, meter: max(meter, 1)}
}

// RunSuite runs tests one by one in the given order. A guest trap fails
// its test; timeouts and harness errors abort the suite. Samples of every
// run that finished within its limit are returned for complexity
// estimation.
func (t *Tester) RunSuite(
	ctx context.Context,
	prog Program,
	tests []api.TestCase,
	multiplier float64,
	gath ResultGatherer,
) (api.ExecutionResult, []complexity.Sample, error) {
	if multiplier <= 0 {
		multiplier = t.cfg.FuelMultiplier
	}
	t.warnDuplicateIDs(tests)

	outcomes := make([]api.TestOutcome, 0, len(tests))
	samples := make([]complexity.Sample, 0, len(tests))
	for _, tc := range tests {
		gath.ReachTest(tc)
		outcome, res, err := t.runTest(ctx, prog, tc, multiplier)
		if err != nil {
			return api.ExecutionResult{}, nil, err
		}
		if outcome.Error == nil {
			samples = append(samples, complexity.Sample{Call: tc.Input, Fuel: res.Fuel})
		}
		t.log.Debug("test finished", "test_id", tc.ID, "success", outcome.Success, "fuel", outcome.Fuel)
		gath.FinishTest(outcome)
		outcomes = append(outcomes, outcome)
	}
	return Aggregate(outcomes), samples, nil
}

// runTest judges one test. A trapped guest yields a result holding the zero
// output and whatever stdout was captured before the trap.
func (t *Tester) runTest(
	ctx context.Context,
	prog Program,
	tc api.TestCase,
	multiplier float64,
	opts ...governor.RunOption,
) (api.TestOutcome, *governor.Result, error) {
	b := budgetFor(tc.MaxFuel, multiplier)
	outcome := api.TestOutcome{
		ID:             tc.ID,
		Index:          tc.Index,
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		MaxFuel:        tc.MaxFuel,
		Hidden:         tc.Hidden,
	}

	res, err := prog.Run(ctx, tc.Input, b.meter, opts...)
	var re *governor.RuntimeError
	switch {
	case err == nil:
		out := res.Output
		outcome.Output = &out
		outcome.Fuel = res.Fuel
		outcome.Success = value.Equal(res.Output, tc.ExpectedOutput)
		if b.limited && res.Fuel > b.limit {
			outcome.Success = false
			outcome.Error = ptr(FuelLimitExceeded)
		}
		return outcome, &res, nil
	case errors.As(err, &re):
		zero := value.Zero(tc.Input.Returns)
		outcome.Output = &zero
		outcome.Fuel = re.Fuel
		msg := re.Message
		if re.OutOfFuel && b.limited {
			msg = FuelLimitExceeded
		}
		outcome.Error = &msg
		return outcome, &governor.Result{Output: zero, Fuel: re.Fuel, Stdout: re.Stdout}, nil
	default:
		return api.TestOutcome{}, nil, err
	}
}

// Aggregate partitions outcomes by verdict, orders each partition by
// index and sums the fuel.
func Aggregate(outcomes []api.TestOutcome) api.ExecutionResult {
	res := api.ExecutionResult{
		PassedTests: []api.TestOutcome{},
		FailedTests: []api.TestOutcome{},
	}
	for _, o := range outcomes {
		res.TotalRuntime += o.Fuel
		if o.Success {
			res.PassedTests = append(res.PassedTests, o)
		} else {
			res.FailedTests = append(res.FailedTests, o)
		}
	}
	byIndex := func(a, b api.TestOutcome) int { return cmp.Compare(a.Index, b.Index) }
	slices.SortStableFunc(res.PassedTests, byIndex)
	slices.SortStableFunc(res.FailedTests, byIndex)
	res.OverallPassed = len(res.FailedTests) == 0
	return res
}

func (t *Tester) warnDuplicateIDs(tests []api.TestCase) {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, tc := range tests {
		if !seen.Add(tc.ID) {
			t.log.Warn("duplicate test id", "test_id", tc.ID)
		}
	}
}

func ptr[T any](v T) *T { return &v }
