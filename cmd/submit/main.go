// Command submit sends a job request to fnjudge over NATS and prints the
// streamed progress until the job finishes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/testset"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "submit",
		Usage:     "send a job request file to fnjudge",
		ArgsUsage: "<request.json[.zst]>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "nats", Value: nats.DefaultURL},
			&cli.StringFlag{Name: "subject", Value: "fnjudge.jobs"},
			&cli.DurationFlag{Name: "timeout", Value: 3 * time.Minute},
		},
		Action: submit,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func submit(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("expected one request file", 2)
	}
	req, err := testset.LoadRequest(cmd.Args().First())
	if err != nil {
		return err
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	nc, err := nats.Connect(cmd.String("nats"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	inbox := nats.NewInbox()
	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(inbox, msgs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	if err := nc.PublishRequest(cmd.String("subject"), inbox, body); err != nil {
		return err
	}
	fmt.Printf("submitted job %s\n", req.JobID)

	timeout := time.After(cmd.Duration("timeout"))
	for {
		select {
		case m := <-msgs:
			done, err := printMessage(m.Data)
			if err != nil || done {
				return err
			}
		case <-timeout:
			return fmt.Errorf("no job_finish within %s", cmd.Duration("timeout"))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printMessage(data []byte) (bool, error) {
	var h api.Header
	if err := json.Unmarshal(data, &h); err != nil {
		return false, fmt.Errorf("decode message: %w", err)
	}
	switch h.MsgType {
	case api.ReachTestMsg:
		var m api.ReachTest
		if err := json.Unmarshal(data, &m); err != nil {
			return false, err
		}
		fmt.Printf("-> test %d", m.Index)
		if m.Input != nil {
			fmt.Printf(" %s", *m.Input)
		}
		fmt.Println()
	case api.FinishTestMsg:
		var m struct {
			Outcome struct {
				Index   int     `json:"index"`
				Success bool    `json:"success"`
				Fuel    uint64  `json:"fuel"`
				Error   *string `json:"error"`
			} `json:"outcome"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return false, err
		}
		verdict := color.GreenString("PASS")
		if !m.Outcome.Success {
			verdict = color.RedString("FAIL")
		}
		fmt.Printf("<- test %d %s fuel=%d\n", m.Outcome.Index, verdict, m.Outcome.Fuel)
		if m.Outcome.Error != nil {
			fmt.Printf("   %s\n", *m.Outcome.Error)
		}
	case api.FinishJobMsg:
		var m api.FinishJob
		if err := json.Unmarshal(data, &m); err != nil {
			return true, err
		}
		out, _ := json.MarshalIndent(m.Response, "", "  ")
		fmt.Println(string(out))
		return true, nil
	default:
		fmt.Printf("%s\n", color.New(color.Faint).Sprint(h.MsgType))
	}
	return false, nil
}
