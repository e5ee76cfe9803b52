package api

import (
	"fmt"

	"github.com/programme-lv/fnjudge/pkg/value"
)

// JobKind selects which payload of a JobRequest is set.
type JobKind string

const (
	RunSubmissionJob  JobKind = "run_submission"
	GenerateTestsJob  JobKind = "generate_tests"
	RunCustomInputJob JobKind = "run_custom_input"
)

// TestCase is one stored test: a call and the output the reference
// produced for it.
type TestCase struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	// Fuel budget before the multiplier is applied. Nil means unbounded.
	MaxFuel        *uint64     `json:"max_fuel"`
	Input          value.Call  `json:"input"`
	ExpectedOutput value.Value `json:"expected_output"`
	Hidden         bool        `json:"hidden"`
}

type RunSubmission struct {
	ProblemID   string     `json:"problem_id"`
	SubmitterID string     `json:"submitter_id"`
	Source      string     `json:"source"`
	Tests       []TestCase `json:"tests"`
	// FuelMultiplier scales every MaxFuel. Zero means the default.
	FuelMultiplier float64 `json:"fuel_multiplier,omitempty"`
}

type GenerateTests struct {
	SubmitterID     string       `json:"submitter_id"`
	ReferenceSource string       `json:"reference_source"`
	Inputs          []value.Call `json:"inputs"`
}

type RunCustomInput struct {
	SubmitterID string `json:"submitter_id"`
	// SessionID names the debugging workspace. Empty means a fresh one.
	SessionID       string     `json:"session_id,omitempty"`
	ProblemID       string     `json:"problem_id"`
	ReferenceSource string     `json:"reference_source"`
	CandidateSource string     `json:"candidate_source"`
	Input           value.Call `json:"input"`
}

// JobRequest carries exactly one payload, the one named by Kind.
type JobRequest struct {
	JobID string  `json:"job_id"`
	Kind  JobKind `json:"kind"`

	RunSubmission  *RunSubmission  `json:"run_submission,omitempty"`
	GenerateTests  *GenerateTests  `json:"generate_tests,omitempty"`
	RunCustomInput *RunCustomInput `json:"run_custom_input,omitempty"`

	// ResponseQueueUrl is where queue transports stream the job's messages.
	ResponseQueueUrl string `json:"response_queue_url,omitempty"`
}

func (r JobRequest) Validate() error {
	set := 0
	for _, present := range []bool{r.RunSubmission != nil, r.GenerateTests != nil, r.RunCustomInput != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("job %s carries %d payloads, want 1", r.JobID, set)
	}
	ok := false
	switch r.Kind {
	case RunSubmissionJob:
		ok = r.RunSubmission != nil
	case GenerateTestsJob:
		ok = r.GenerateTests != nil
	case RunCustomInputJob:
		ok = r.RunCustomInput != nil
	default:
		return fmt.Errorf("unknown job kind %q", r.Kind)
	}
	if !ok {
		return fmt.Errorf("job %s of kind %s carries another kind's payload", r.JobID, r.Kind)
	}
	return nil
}
