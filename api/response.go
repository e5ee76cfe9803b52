package api

import (
	"encoding/json"

	"github.com/programme-lv/fnjudge/internal/complexity"
	"github.com/programme-lv/fnjudge/pkg/value"
)

// TestOutcome is the verdict of one test. Hidden outcomes serialise only
// id, index, success and error.
type TestOutcome struct {
	ID             string       `json:"id"`
	Index          int          `json:"index"`
	Success        bool         `json:"success"`
	Input          value.Call   `json:"input"`
	ExpectedOutput value.Value  `json:"expected_output"`
	Output         *value.Value `json:"output"`
	Fuel           uint64       `json:"fuel"`
	Error          *string      `json:"error"`
	MaxFuel        *uint64      `json:"max_fuel"`
	Hidden         bool         `json:"hidden"`
}

type hiddenOutcome struct {
	ID      string  `json:"id"`
	Index   int     `json:"index"`
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

func (o TestOutcome) MarshalJSON() ([]byte, error) {
	if o.Hidden {
		return json.Marshal(hiddenOutcome{ID: o.ID, Index: o.Index, Success: o.Success, Error: o.Error})
	}
	type plain TestOutcome
	return json.Marshal(plain(o))
}

// ExecutionResult holds outcomes partitioned by verdict, each partition
// ordered by test index.
type ExecutionResult struct {
	PassedTests   []TestOutcome     `json:"passed_tests"`
	FailedTests   []TestOutcome     `json:"failed_tests"`
	TotalRuntime  uint64            `json:"total_runtime"`
	OverallPassed bool              `json:"overall_passed"`
	Complexity    *complexity.Class `json:"complexity,omitempty"`
}

// Flatten lists failed tests before passed ones.
func (r ExecutionResult) Flatten() []TestOutcome {
	out := make([]TestOutcome, 0, len(r.FailedTests)+len(r.PassedTests))
	out = append(out, r.FailedTests...)
	return append(out, r.PassedTests...)
}

type CustomRunResult struct {
	Outcome TestOutcome `json:"outcome"`
	Stdout  string      `json:"stdout"`
}

type ErrorKind string

const (
	CompilationError    ErrorKind = "compilation_error"
	RuntimeError        ErrorKind = "runtime_error"
	InternalServerError ErrorKind = "internal_server_error"
	TimeoutError        ErrorKind = "timeout_error"
)

type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobError is a request level failure. No partial output accompanies it.
type JobError struct {
	Kind        ErrorKind    `json:"kind"`
	Message     string       `json:"message"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Stderr      string       `json:"stderr,omitempty"`
}

// JobOutput is the successful output of a job; one field is set per kind.
type JobOutput struct {
	Result *ExecutionResult `json:"result,omitempty"`
	Tests  []TestCase       `json:"tests,omitempty"`
	Custom *CustomRunResult `json:"custom,omitempty"`
}

type CompileInfo struct {
	Role   Role `json:"role"`
	Cached bool `json:"cached"`
}

type JobStatus string

const (
	Success JobStatus = "success"
	Failure JobStatus = "error"
)

type JobResponse struct {
	JobID  string    `json:"job_id"`
	Kind   JobKind   `json:"kind"`
	Status JobStatus `json:"status"`

	JobOutput
	Error *JobError `json:"error,omitempty"`

	Compilations []CompileInfo `json:"compilations"`
	SystemInfo   *string       `json:"system_info,omitempty"`
	StartTime    string        `json:"start_time"`
	FinishTime   string        `json:"finish_time"`
	TotalTimeMs  int64         `json:"total_time_ms"`
}
