package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/behave"
	"github.com/programme-lv/fnjudge/internal/gatherer/termgath"
	"github.com/programme-lv/fnjudge/internal/tester"
	"github.com/programme-lv/fnjudge/internal/testset"
	"github.com/programme-lv/fnjudge/internal/transport/natsq"
	"github.com/programme-lv/fnjudge/internal/transport/sqsq"
	"github.com/programme-lv/fnjudge/pkg/value"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "consume jobs from a queue",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Value: "nats", Usage: "nats or sqs"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() {
				snap := a.worker.Stats().Snapshot()
				a.log.Info("worker stopped", "failed", snap.Failed, "done", snap.Done)
			}()

			switch t := cmd.String("transport"); t {
			case "nats":
				nc, err := nats.Connect(a.cfg.Nats.URL, nats.Name("fnjudge"))
				if err != nil {
					return fmt.Errorf("connect to NATS: %w", err)
				}
				defer nc.Close()
				return natsq.New(nc, a.cfg.Nats.Subject, a.cfg.Nats.Queue, a.worker, a.log).Serve(ctx)
			case "sqs":
				if a.cfg.Sqs.RequestQueueUrl == "" {
					return fmt.Errorf("sqs.request_queue_url is not set")
				}
				client, err := sqsq.NewClient(ctx, a.cfg.Sqs.Region, a.cfg.Sqs.Profile)
				if err != nil {
					return err
				}
				pollers := int(a.cfg.Jobs.MaxConcurrent)
				return sqsq.New(client, a.cfg.Sqs.RequestQueueUrl, pollers, a.worker, a.log).Serve(ctx)
			default:
				return fmt.Errorf("unknown transport %q", t)
			}
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "judge a source file against a test set",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Required: true},
			&cli.StringFlag{Name: "tests", Required: true, Usage: "JSON test set, .zst allowed"},
			&cli.StringFlag{Name: "problem", Value: "local"},
			&cli.StringFlag{Name: "submitter", Value: "local"},
			&cli.FloatFlag{Name: "multiplier", Usage: "fuel multiplier, 0 for the configured default"},
			&cli.BoolFlag{Name: "json", Usage: "print the response as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src, err := os.ReadFile(cmd.String("source"))
			if err != nil {
				return err
			}
			tests, err := testset.LoadTests(cmd.String("tests"))
			if err != nil {
				return err
			}
			return handle(ctx, cmd, api.JobRequest{
				JobID: uuid.NewString(),
				Kind:  api.RunSubmissionJob,
				RunSubmission: &api.RunSubmission{
					ProblemID:      cmd.String("problem"),
					SubmitterID:    cmd.String("submitter"),
					Source:         string(src),
					Tests:          tests,
					FuelMultiplier: cmd.Float("multiplier"),
				},
			}, nil)
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "record a reference solution's answers as a test set",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reference", Required: true},
			&cli.StringFlag{Name: "inputs", Required: true, Usage: "JSON array of calls"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "test set to write, .zst compresses"},
			&cli.StringFlag{Name: "submitter", Value: "local"},
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ref, err := os.ReadFile(cmd.String("reference"))
			if err != nil {
				return err
			}
			var inputs []value.Call
			if err := readJSON(cmd.String("inputs"), &inputs); err != nil {
				return err
			}
			return handle(ctx, cmd, api.JobRequest{
				JobID: uuid.NewString(),
				Kind:  api.GenerateTestsJob,
				GenerateTests: &api.GenerateTests{
					SubmitterID:     cmd.String("submitter"),
					ReferenceSource: string(ref),
					Inputs:          inputs,
				},
			}, func(resp api.JobResponse) error {
				return testset.SaveTests(cmd.String("out"), resp.Tests)
			})
		},
	}
}

func customCommand() *cli.Command {
	return &cli.Command{
		Name:  "custom",
		Usage: "run one input through a reference and a candidate",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reference", Required: true},
			&cli.StringFlag{Name: "source", Required: true},
			&cli.StringFlag{Name: "input", Required: true, Usage: "JSON call"},
			&cli.StringFlag{Name: "session", Usage: "reuse a debugging workspace"},
			&cli.StringFlag{Name: "submitter", Value: "local"},
			&cli.BoolFlag{Name: "json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ref, err := os.ReadFile(cmd.String("reference"))
			if err != nil {
				return err
			}
			src, err := os.ReadFile(cmd.String("source"))
			if err != nil {
				return err
			}
			var input value.Call
			if err := readJSON(cmd.String("input"), &input); err != nil {
				return err
			}
			return handle(ctx, cmd, api.JobRequest{
				JobID: uuid.NewString(),
				Kind:  api.RunCustomInputJob,
				RunCustomInput: &api.RunCustomInput{
					SubmitterID:     cmd.String("submitter"),
					SessionID:       cmd.String("session"),
					ProblemID:       "local",
					ReferenceSource: string(ref),
					CandidateSource: string(src),
					Input:           input,
				},
			}, func(resp api.JobResponse) error {
				if !cmd.Bool("json") && resp.Custom != nil && resp.Custom.Stdout != "" {
					fmt.Printf("stdout:\n%s", resp.Custom.Stdout)
				}
				return nil
			})
		},
	}
}

func behaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run TOML behaviour scenarios",
		ArgsUsage: "<scenarios.toml>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("expected one scenario file", 2)
			}
			cases, err := behave.Parse(cmd.Args().First())
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ok := color.New(color.FgGreen).SprintFunc()
			bad := color.New(color.FgRed).SprintFunc()
			failed := 0
			for _, c := range cases {
				resp := a.worker.Handle(ctx, c.Request, tester.Discard)
				problems := c.Check(resp)
				if len(problems) == 0 {
					fmt.Printf("%s %s\n", ok("PASS"), c.Name)
					continue
				}
				failed++
				fmt.Printf("%s %s\n", bad("FAIL"), c.Name)
				for _, p := range problems {
					fmt.Printf("     %s\n", p)
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d scenarios failed", failed, len(cases)), 1)
			}
			return nil
		},
	}
}

// handle runs req locally, printing progress or the JSON response, then
// passes a successful response to after.
func handle(ctx context.Context, cmd *cli.Command, req api.JobRequest, after func(api.JobResponse) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var gath tester.ResultGatherer = termgath.New(os.Stdout)
	if cmd.Bool("json") {
		gath = tester.Discard
	}
	resp := a.worker.Handle(ctx, req, gath)
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	if resp.Status != api.Success {
		return cli.Exit("", 1)
	}
	if after != nil {
		return after(resp)
	}
	return nil
}

func readJSON(path string, v any) error {
	b, err := testset.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
