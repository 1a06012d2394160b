// Package status defines the kernel's closed result-code set and a small
// error-wrapping type, shared by the kernel core and the task and primitives
// packages so the latter need not import the top-level kernel package just
// to report a Status.
package status

import (
	"errors"
	"fmt"
)

// Status is the kernel's closed set of result codes. Errors are values, not
// exceptions.
type Status int

const (
	Success Status = iota
	InvalidParam
	NoMemory
	TaskNotFound
	InvalidState
	Timeout
	Full
	Empty
	TooManyTasks
	General
	// Reset is returned to a task blocked on a Queue when that queue is
	// explicitly Reset, distinguishing it from an ordinary Timeout.
	Reset
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InvalidParam:
		return "invalid_param"
	case NoMemory:
		return "no_memory"
	case TaskNotFound:
		return "task_not_found"
	case InvalidState:
		return "invalid_state"
	case Timeout:
		return "timeout"
	case Full:
		return "full"
	case Empty:
		return "empty"
	case TooManyTasks:
		return "too_many_tasks"
	case General:
		return "general"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Error allows a bare Status to be returned/compared as an error, so
// errors.Is(err, status.Timeout) works without any wrapping.
func (s Status) Error() string { return "vrtos: " + s.String() }

// Fault wraps a Status with a message and an optional cause, following the
// cause-chain error-aggregation pattern (Unwrap returning multiple errors,
// Go 1.20+).
type Fault struct {
	Status  Status
	Message string
	Cause   error
}

// New builds a *Fault. cause may be nil.
func New(s Status, message string, cause error) *Fault {
	return &Fault{Status: s, Message: message, Cause: cause}
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("vrtos: %s: %s: %v", f.Status, f.Message, f.Cause)
	}
	return fmt.Sprintf("vrtos: %s: %s", f.Status, f.Message)
}

// Unwrap exposes both the status and the cause to errors.Is/errors.As.
func (f *Fault) Unwrap() []error {
	if f.Cause != nil {
		return []error{f.Status, f.Cause}
	}
	return []error{f.Status}
}

// Is allows errors.Is(f, someStatus) to match directly against the status,
// without the caller needing to unwrap first.
func (f *Fault) Is(target error) bool {
	var s Status
	if errors.As(target, &s) {
		return f.Status == s
	}
	return false
}
