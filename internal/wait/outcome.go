package wait

import (
	"errors"
	"fmt"
	"time"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// Status is the terminal state of a wait.
type Status string

// Wait statuses.
const (
	// StatusSatisfied means Await saw the condition hold, or Hold saw it
	// stay false for the whole window.
	StatusSatisfied Status = "satisfied"

	// StatusTimeout means Await's condition never held before the timeout.
	StatusTimeout Status = "timeout"

	// StatusCancelled means the enclosing context ended first.
	StatusCancelled Status = "cancelled"

	// StatusConditionError means the condition could not be evaluated.
	StatusConditionError Status = "condition_error"

	// StatusViolated means Hold saw the condition become true.
	StatusViolated Status = "violated"
)

// Outcome describes how a wait ended.
type Outcome struct {
	Status      Status
	Description string
	Elapsed     time.Duration
	Attempts    int

	// Cause is the condition error or cancellation cause, if any.
	Cause error
}

// OK reports whether the wait was satisfied.
func (o Outcome) OK() bool {
	return o.Status == StatusSatisfied
}

// Err returns nil for a satisfied wait and a *Failure otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Failure{
		Status:      o.Status,
		Description: o.Description,
		Elapsed:     o.Elapsed,
		Attempts:    o.Attempts,
		Cause:       o.Cause,
	}
}

// Failure is the error form of an unsatisfied Outcome. It matches the
// sentinel for its status with errors.Is, and its Cause as well.
type Failure struct {
	Status      Status
	Description string
	Elapsed     time.Duration
	Attempts    int
	Cause       error
}

// Sentinel returns the error category of the failure.
func (f *Failure) Sentinel() error {
	switch f.Status {
	case StatusTimeout:
		return trellerrors.ErrTimeoutFailure
	case StatusCancelled:
		return trellerrors.ErrWaitCancelled
	case StatusViolated:
		return trellerrors.ErrIsolationViolation
	case StatusConditionError, StatusSatisfied:
	}
	return trellerrors.ErrConditionError
}

// Error implements the error interface.
func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %s after %s (%d attempts)",
		f.Sentinel(), f.Description, f.Elapsed.Round(time.Millisecond), f.Attempts)
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the cause.
func (f *Failure) Unwrap() []error {
	if f.Cause == nil {
		return []error{f.Sentinel()}
	}
	return []error{f.Sentinel(), f.Cause}
}

// AsFailure extracts the first *Failure in err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
