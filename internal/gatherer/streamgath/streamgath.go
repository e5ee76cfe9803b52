// Package streamgath turns job events into api stream messages and hands
// them to a transport specific publisher.
package streamgath

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/pkg/value"
)

// Publisher delivers one encoded message.
type Publisher interface {
	Publish(ctx context.Context, msg []byte) error
}

type Gatherer struct {
	pub   Publisher
	jobID string
	kind  api.JobKind
	log   *slog.Logger
}

func New(pub Publisher, jobID string, kind api.JobKind, log *slog.Logger) *Gatherer {
	return &Gatherer{pub: pub, jobID: jobID, kind: kind, log: log}
}

// Publishing failures are logged and dropped; progress is best effort.
func (g *Gatherer) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		g.log.Error("failed to marshal message", "job_id", g.jobID, "err", err)
		return
	}
	if err := g.pub.Publish(context.Background(), b); err != nil {
		g.log.Error("failed to publish message", "job_id", g.jobID, "err", err)
	}
}

func (g *Gatherer) StartJob(systemInfo string) {
	g.send(api.NewStartJob(g.jobID, g.kind, systemInfo))
}

func (g *Gatherer) StartCompile(role api.Role) {
	g.send(api.NewStartCompile(g.jobID, role))
}

func (g *Gatherer) FinishCompile(role api.Role, cached bool) {
	g.send(api.NewFinishCompile(g.jobID, role, cached))
}

// ReachTest sends trimmed previews of the call and its answer. Hidden
// tests and tests without an answer yet send none.
func (g *Gatherer) ReachTest(tc api.TestCase) {
	var input, answer *string
	if !tc.Hidden {
		input = preview(tc.Input.String())
		if !unset(tc.ExpectedOutput) {
			answer = preview(tc.ExpectedOutput.String())
		}
	}
	g.send(api.NewReachTest(g.jobID, tc.ID, tc.Index, input, answer))
}

func (g *Gatherer) FinishTest(outcome api.TestOutcome) {
	g.send(api.NewFinishTest(g.jobID, outcome))
}

func (g *Gatherer) FinishJob(resp api.JobResponse) {
	g.send(api.NewFinishJob(resp))
}

func preview(s string) *string {
	trimmed := trimStrToRect(s, api.MaxPreviewHeight, api.MaxPreviewWidth)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func unset(v value.Value) bool {
	return v.Shape == value.Single && v.Scalar == nil
}
