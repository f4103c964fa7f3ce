package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies pipeline failures by their blast radius
type ErrorType string

const (
	// ErrorTypeSourceUnavailable means the backing mark store cannot be
	// reached. Fatal to the run; the caller restarts the process.
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"

	// ErrorTypeCheckpointCorrupt means the checkpoint document exists but
	// cannot be decoded. Fatal at startup; the store refuses to start
	// rather than silently resetting.
	ErrorTypeCheckpointCorrupt ErrorType = "checkpoint_corrupt"

	// ErrorTypeUnit means one work unit failed. The unit is marked failed
	// and the pool continues.
	ErrorTypeUnit ErrorType = "unit_failure"

	// ErrorTypeTransform means a single record could not be converted. The
	// record is skipped and counted; the unit continues.
	ErrorTypeTransform ErrorType = "transform_failure"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error carries a failure classification alongside the underlying cause.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a typed error without an underlying cause.
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap attaches a classification to an underlying error.
func Wrap(t ErrorType, msg string, cause error) *Error {
	return &Error{Type: t, Message: msg, Cause: cause}
}

// SourceUnavailable wraps a source connectivity failure.
func SourceUnavailable(msg string, cause error) *Error {
	return Wrap(ErrorTypeSourceUnavailable, msg, cause)
}

// CheckpointCorrupt wraps an unreadable checkpoint document.
func CheckpointCorrupt(msg string, cause error) *Error {
	return Wrap(ErrorTypeCheckpointCorrupt, msg, cause)
}

// UnitFailure wraps a per-unit processing failure.
func UnitFailure(msg string, cause error) *Error {
	return Wrap(ErrorTypeUnit, msg, cause)
}

// IsFatal reports whether an error type must abort the whole run. Unit and
// record failures never are; they are recorded and the pool moves on.
func IsFatal(t ErrorType) bool {
	switch t {
	case ErrorTypeSourceUnavailable, ErrorTypeCheckpointCorrupt:
		return true
	default:
		return false
	}
}

// TypeOf extracts the classification from an error chain, or
// ErrorTypeUnknown for untyped errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether an error classification is worth another
// attempt against the source. Corruption and unit failures are not; they
// need operator action or the recovery pass.
func IsRetryable(t ErrorType) bool {
	return t == ErrorTypeSourceUnavailable || t == ErrorTypeUnknown
}
