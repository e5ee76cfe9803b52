package tester

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/governor"
	"golang.org/x/sync/errgroup"
)

// RunCustomInput runs a user supplied input through the reference and then
// through the candidate, judging the candidate against the reference's
// answer with a generous fuel allowance and its stdout captured.
func (t *Tester) RunCustomInput(ctx context.Context, req *api.RunCustomInput, gath ResultGatherer) (*api.CustomRunResult, error) {
	gath.StartJob(t.systemInfo)

	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}
	symbols := symbolsOf(req.Input)

	var ref, cand *governor.Program
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ref, err = t.build(gctx, compiler.Prefix{"debug", req.SubmitterID, session, string(api.Reference)}, req.ReferenceSource, api.Reference, symbols, gath)
		return err
	})
	g.Go(func() error {
		var err error
		cand, err = t.build(gctx, compiler.Prefix{"debug", req.SubmitterID, session, string(api.Candidate)}, req.CandidateSource, api.Candidate, symbols, gath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	want, err := ref.Run(ctx, req.Input, governor.DefaultFuel)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}

	refFuel := want.Fuel
	tc := api.TestCase{
		ID:             uuid.NewString(),
		MaxFuel:        &refFuel,
		Input:          req.Input,
		ExpectedOutput: want.Output,
	}
	gath.ReachTest(tc)

	outcome, res, err := t.runTest(ctx, cand, tc, t.cfg.CustomFuelMultiplier, governor.WithStdout())
	if err != nil {
		return nil, err
	}
	gath.FinishTest(outcome)

	t.log.Info("custom input judged", "session", session, "success", outcome.Success, "fuel", outcome.Fuel)
	return &api.CustomRunResult{Outcome: outcome, Stdout: res.Stdout}, nil
}
