package api

import "time"

// MsgType is a message type for streaming responses
type MsgType string

const (
	StartJobMsg      MsgType = "job_start"
	StartCompileMsg  MsgType = "compile_start"
	FinishCompileMsg MsgType = "compile_finish"
	ReachTestMsg     MsgType = "test_reach"
	FinishTestMsg    MsgType = "test_finish"
	FinishJobMsg     MsgType = "job_finish"
)

// Previews of test inputs and answers are trimmed to this rectangle.
const (
	MaxPreviewHeight = 40
	MaxPreviewWidth  = 80
)

// Role tells which program of a job is being compiled.
type Role string

const (
	Candidate Role = "candidate"
	Reference Role = "reference"
)

// Header is the common header for all streaming response messages
type Header struct {
	JobID   string  `json:"job_id"`
	MsgType MsgType `json:"msg_type"`
}

type StartJob struct {
	Header
	Kind        JobKind `json:"kind"`
	SystemInfo  string  `json:"system_info"`
	StartedTime string  `json:"started_time"`
}

type StartCompile struct {
	Header
	Role Role `json:"role"`
}

type FinishCompile struct {
	Header
	Role   Role `json:"role"`
	Cached bool `json:"cached"`
}

// ReachTest announces a test before it runs. Previews are nil for hidden
// tests.
type ReachTest struct {
	Header
	TestID string  `json:"test_id"`
	Index  int     `json:"index"`
	Input  *string `json:"input"`
	Answer *string `json:"answer"`
}

type FinishTest struct {
	Header
	Outcome TestOutcome `json:"outcome"`
}

type FinishJob struct {
	Header
	Response JobResponse `json:"response"`
}

func NewHeader(jobID string, msgType MsgType) Header {
	return Header{
		JobID:   jobID,
		MsgType: msgType,
	}
}

func NewStartJob(jobID string, kind JobKind, systemInfo string) StartJob {
	return StartJob{
		Header:      NewHeader(jobID, StartJobMsg),
		Kind:        kind,
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartCompile(jobID string, role Role) StartCompile {
	return StartCompile{
		Header: NewHeader(jobID, StartCompileMsg),
		Role:   role,
	}
}

func NewFinishCompile(jobID string, role Role, cached bool) FinishCompile {
	return FinishCompile{
		Header: NewHeader(jobID, FinishCompileMsg),
		Role:   role,
		Cached: cached,
	}
}

func NewReachTest(jobID string, testID string, index int, input, answer *string) ReachTest {
	return ReachTest{
		Header: NewHeader(jobID, ReachTestMsg),
		TestID: testID,
		Index:  index,
		Input:  input,
		Answer: answer,
	}
}

func NewFinishTest(jobID string, outcome TestOutcome) FinishTest {
	return FinishTest{
		Header:  NewHeader(jobID, FinishTestMsg),
		Outcome: outcome,
	}
}

func NewFinishJob(resp JobResponse) FinishJob {
	return FinishJob{
		Header:   NewHeader(resp.JobID, FinishJobMsg),
		Response: resp,
	}
}
