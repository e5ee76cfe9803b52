package tester

import (
	"github.com/programme-lv/fnjudge/api"
)

// ResultGatherer receives progress of a job. Compiles of one job may run
// concurrently, so implementations must be safe for concurrent use.
type ResultGatherer interface {
	StartJob(systemInfo string)

	StartCompile(role api.Role)
	FinishCompile(role api.Role, cached bool)

	ReachTest(test api.TestCase)
	FinishTest(outcome api.TestOutcome)

	FinishJob(resp api.JobResponse)
}

// Tee forwards every event to all gatherers in order.
func Tee(gs ...ResultGatherer) ResultGatherer {
	return tee(gs)
}

type tee []ResultGatherer

func (t tee) StartJob(systemInfo string) {
	for _, g := range t {
		g.StartJob(systemInfo)
	}
}

func (t tee) StartCompile(role api.Role) {
	for _, g := range t {
		g.StartCompile(role)
	}
}

func (t tee) FinishCompile(role api.Role, cached bool) {
	for _, g := range t {
		g.FinishCompile(role, cached)
	}
}

func (t tee) ReachTest(test api.TestCase) {
	for _, g := range t {
		g.ReachTest(test)
	}
}

func (t tee) FinishTest(outcome api.TestOutcome) {
	for _, g := range t {
		g.FinishTest(outcome)
	}
}

func (t tee) FinishJob(resp api.JobResponse) {
	for _, g := range t {
		g.FinishJob(resp)
	}
}

// Discard drops every event.
var Discard ResultGatherer = tee(nil)
