package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Code represents a typed failure reason reported in the result record.
type Code string

// Orchestration failure codes.
const (
	ErrConfiguration          Code = "CONFIGURATION_ERROR"
	ErrNotFound               Code = "NOT_FOUND"
	ErrNoRevisionHistory      Code = "NO_REVISION_HISTORY"
	ErrClusterOperationFailed Code = "CLUSTER_OPERATION_FAILED"
	ErrRolloutTimedOut        Code = "ROLLOUT_TIMED_OUT"
	ErrHealthCheckTimedOut    Code = "HEALTH_CHECK_TIMED_OUT"
	ErrRollbackIssueFailed    Code = "ROLLBACK_ISSUE_FAILED"
	ErrEndpointUnresolved     Code = "ENDPOINT_UNRESOLVED"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep blocks for the given duration.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// OrchestrationError is a typed error carrying the failure code that ends
// up as the result record's reason.
type OrchestrationError struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OrchestrationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// New creates an OrchestrationError with a formatted message.
func New(code Code, format string, args ...any) *OrchestrationError {
	return &OrchestrationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an OrchestrationError wrapping an underlying error.
func Wrap(code Code, err error, format string, args ...any) *OrchestrationError {
	return &OrchestrationError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the failure code from err, or ErrClusterOperationFailed
// when err carries no typed code.
func CodeOf(err error) Code {
	var oe *OrchestrationError
	if stderrors.As(err, &oe) {
		return oe.Code
	}
	return ErrClusterOperationFailed
}
