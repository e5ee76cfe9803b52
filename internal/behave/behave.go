package behave

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/pkg/value"
)

// Values are written as inline tables with the same fields as their JSON
// form, e.g. {kind = "int", shape = "list", value = [1, 2]}.
type table = map[string]any

type SpecCall struct {
	Name    string  `toml:"name"`
	Args    []table `toml:"args"`
	Returns table   `toml:"returns"`
}

type SpecTest struct {
	Call     SpecCall `toml:"call"`
	Expected table    `toml:"expected"`
	MaxFuel  *uint64  `toml:"max_fuel"`
	Hidden   bool     `toml:"hidden"`
}

// SpecExpect describes the expected response of a scenario. Verdicts list
// the success of each test in index order.
type SpecExpect struct {
	Status     string `toml:"status"`
	Error      string `toml:"error"`
	Verdicts   []bool `toml:"verdicts"`
	Complexity string `toml:"complexity"`
	Tests      int    `toml:"tests"`
	Stdout     string `toml:"stdout"`
}

type specScenario struct {
	Description string     `toml:"description"`
	Kind        string     `toml:"kind"`
	Source      string     `toml:"source"`
	Reference   string     `toml:"reference"`
	Tests       []SpecTest `toml:"tests"`
	Inputs      []SpecCall `toml:"inputs"`
	Input       *SpecCall  `toml:"input"`
	Expect      SpecExpect `toml:"expect"`
}

type specRoot struct {
	Scenarios []specScenario `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name    string
	Request api.JobRequest
	Expect  SpecExpect
}

// Parse reads a behaviour TOML file and converts it to runnable cases.
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Scenarios))
	for i, sc := range root.Scenarios {
		req, err := sc.request()
		if err != nil {
			return nil, fmt.Errorf("scenario %d (%s): %w", i, sc.Description, err)
		}
		if sc.Expect.Status == "" {
			sc.Expect.Status = string(api.Success)
		}
		cases = append(cases, Case{Name: sc.Description, Request: req, Expect: sc.Expect})
	}
	return cases, nil
}

func (sc specScenario) request() (api.JobRequest, error) {
	req := api.JobRequest{JobID: uuid.NewString(), Kind: api.JobKind(sc.Kind)}
	switch req.Kind {
	case api.RunSubmissionJob:
		tests := make([]api.TestCase, 0, len(sc.Tests))
		for i, st := range sc.Tests {
			call, err := st.Call.convert()
			if err != nil {
				return req, fmt.Errorf("test %d: %w", i, err)
			}
			want, err := decode[value.Value](st.Expected)
			if err != nil {
				return req, fmt.Errorf("test %d expected: %w", i, err)
			}
			tests = append(tests, api.TestCase{
				ID:             fmt.Sprintf("t%d", i),
				Index:          i,
				MaxFuel:        st.MaxFuel,
				Input:          call,
				ExpectedOutput: want,
				Hidden:         st.Hidden,
			})
		}
		req.RunSubmission = &api.RunSubmission{
			ProblemID:   "behave",
			SubmitterID: "behave",
			Source:      sc.Source,
			Tests:       tests,
		}
	case api.GenerateTestsJob:
		inputs := make([]value.Call, 0, len(sc.Inputs))
		for i, in := range sc.Inputs {
			call, err := in.convert()
			if err != nil {
				return req, fmt.Errorf("input %d: %w", i, err)
			}
			inputs = append(inputs, call)
		}
		req.GenerateTests = &api.GenerateTests{SubmitterID: "behave", ReferenceSource: sc.Reference, Inputs: inputs}
	case api.RunCustomInputJob:
		if sc.Input == nil {
			return req, fmt.Errorf("custom input scenario without input")
		}
		call, err := sc.Input.convert()
		if err != nil {
			return req, err
		}
		req.RunCustomInput = &api.RunCustomInput{
			SubmitterID:     "behave",
			ProblemID:       "behave",
			ReferenceSource: sc.Reference,
			CandidateSource: sc.Source,
			Input:           call,
		}
	default:
		return req, fmt.Errorf("unknown kind %q", sc.Kind)
	}
	return req, nil
}

func (c SpecCall) convert() (value.Call, error) {
	call := value.Call{Name: c.Name, Args: make([]value.Value, 0, len(c.Args))}
	for i, a := range c.Args {
		v, err := decode[value.Value](a)
		if err != nil {
			return call, fmt.Errorf("%s arg %d: %w", c.Name, i, err)
		}
		call.Args = append(call.Args, v)
	}
	if c.Returns == nil {
		return call, fmt.Errorf("%s has no return signature", c.Name)
	}
	sig, err := decode[value.Signature](c.Returns)
	if err != nil {
		return call, fmt.Errorf("%s returns: %w", c.Name, err)
	}
	call.Returns = sig
	return call, nil
}

// decode converts a TOML table into T through its JSON form.
func decode[T any](t table) (T, error) {
	var out T
	b, err := json.Marshal(t)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

// Check compares a response against the expectation and lists every
// mismatch.
func (c Case) Check(resp api.JobResponse) []string {
	var problems []string
	e := c.Expect
	if string(resp.Status) != e.Status {
		msg := fmt.Sprintf("status %s, want %s", resp.Status, e.Status)
		if resp.Error != nil {
			msg += ": " + resp.Error.Message
		}
		problems = append(problems, msg)
	}
	if e.Error != "" && (resp.Error == nil || string(resp.Error.Kind) != e.Error) {
		problems = append(problems, fmt.Sprintf("error kind %v, want %s", errorKind(resp), e.Error))
	}
	if e.Verdicts != nil && resp.Result != nil {
		got := verdicts(resp.Result)
		if !slices.Equal(got, e.Verdicts) {
			problems = append(problems, fmt.Sprintf("verdicts %v, want %v", got, e.Verdicts))
		}
	}
	if e.Complexity != "" && resp.Result != nil {
		if resp.Result.Complexity == nil || resp.Result.Complexity.String() != e.Complexity {
			problems = append(problems, fmt.Sprintf("complexity %v, want %s", resp.Result.Complexity, e.Complexity))
		}
	}
	if e.Tests > 0 && len(resp.Tests) != e.Tests {
		problems = append(problems, fmt.Sprintf("%d generated tests, want %d", len(resp.Tests), e.Tests))
	}
	if e.Stdout != "" && (resp.Custom == nil || resp.Custom.Stdout != e.Stdout) {
		problems = append(problems, "stdout mismatch")
	}
	return problems
}

func errorKind(resp api.JobResponse) string {
	if resp.Error == nil {
		return "none"
	}
	return string(resp.Error.Kind)
}

func verdicts(r *api.ExecutionResult) []bool {
	all := r.Flatten()
	out := make([]bool, len(all))
	for _, o := range all {
		if o.Index >= 0 && o.Index < len(out) {
			out[o.Index] = o.Success
		}
	}
	return out
}
