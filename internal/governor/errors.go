package governor

import (
	"fmt"
	"time"
)

// RuntimeError is a guest trap, fuel exhaustion included. It fails the
// current test only.
type RuntimeError struct {
	Message   string
	OutOfFuel bool
	Fuel      uint64
	// Stdout holds what the guest printed before trapping, when captured.
	Stdout string
}

func (e *RuntimeError) Error() string {
	if e.OutOfFuel {
		return "runtime error: out of fuel"
	}
	return "runtime error: " + e.Message
}

// TimeoutError means the wall clock ran out before the guest returned. The
// abandoned computation is interrupted in the background.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s", e.After)
}

// InternalError is a failure of the harness rather than of the guest:
// missing exports, marshaling faults, instantiation problems.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }
