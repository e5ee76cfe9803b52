package api_test

import (
	"encoding/json"
	"testing"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(hidden bool) api.TestOutcome {
	out := value.NewSingle(value.Int32, int32(3))
	maxFuel := uint64(1000)
	msg := "wrong answer"
	return api.TestOutcome{
		ID:      "t1",
		Index:   4,
		Success: false,
		Input: value.Call{
			Name:    "add",
			Args:    []value.Value{value.NewSingle(value.Int32, int32(1)), value.NewSingle(value.Int32, int32(1))},
			Returns: value.Signature{Kind: value.Int32, Shape: value.Single},
		},
		ExpectedOutput: value.NewSingle(value.Int32, int32(2)),
		Output:         &out,
		Fuel:           120,
		Error:          &msg,
		MaxFuel:        &maxFuel,
		Hidden:         hidden,
	}
}

func TestHiddenOutcomeIsRedacted(t *testing.T) {
	b, err := json.Marshal(outcome(true))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"id", "index", "success", "error"}, keys)
}

func TestVisibleOutcomeKeepsDetails(t *testing.T) {
	b, err := json.Marshal(outcome(false))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &fields))
	for _, k := range []string{"input", "expected_output", "output", "fuel", "max_fuel", "hidden"} {
		assert.Contains(t, fields, k)
	}
	assert.JSONEq(t, `{"kind":"int","shape":"single","value":3}`, string(fields["output"]))
}

func TestFlattenListsFailedFirst(t *testing.T) {
	r := api.ExecutionResult{
		PassedTests: []api.TestOutcome{{ID: "a", Index: 0, Success: true}, {ID: "c", Index: 2, Success: true}},
		FailedTests: []api.TestOutcome{{ID: "b", Index: 1}},
	}
	var ids []string
	for _, o := range r.Flatten() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestJobRequestValidate(t *testing.T) {
	ok := api.JobRequest{JobID: "j", Kind: api.GenerateTestsJob, GenerateTests: &api.GenerateTests{}}
	require.NoError(t, ok.Validate())

	mismatched := api.JobRequest{JobID: "j", Kind: api.RunSubmissionJob, GenerateTests: &api.GenerateTests{}}
	assert.Error(t, mismatched.Validate())

	empty := api.JobRequest{JobID: "j", Kind: api.RunSubmissionJob}
	assert.Error(t, empty.Validate())

	unknown := api.JobRequest{JobID: "j", Kind: "compile", RunSubmission: &api.RunSubmission{}}
	assert.Error(t, unknown.Validate())
}

func TestJobRequestJSON(t *testing.T) {
	const in = `{
		"job_id": "42",
		"kind": "run_submission",
		"run_submission": {
			"problem_id": "sum",
			"submitter_id": "alice",
			"source": "int sum(vector<int> v);",
			"tests": [{
				"id": "t0", "index": 0, "max_fuel": 5000, "hidden": true,
				"input": {"name": "sum", "args": [{"kind":"int","shape":"list","value":[1,2]}], "returns": {"kind":"int","shape":"single"}},
				"expected_output": {"kind":"int","shape":"single","value":3}
			}]
		}
	}`
	var req api.JobRequest
	require.NoError(t, json.Unmarshal([]byte(in), &req))
	require.NoError(t, req.Validate())
	tc := req.RunSubmission.Tests[0]
	assert.Equal(t, uint64(5000), *tc.MaxFuel)
	assert.True(t, tc.Hidden)
	assert.Equal(t, []any{int32(1), int32(2)}, tc.Input.Args[0].Items)
}
