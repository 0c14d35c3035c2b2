// Package apperrors provides the structured error taxonomy of the flow client.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation = errors.New("validation error")
	ErrProtocol   = errors.New("malformed response")
	ErrRemote     = errors.New("remote call failed")
	ErrTransport  = errors.New("transport error")
	ErrInternal   = errors.New("internal error")
	ErrJobFailed  = errors.New("job failed")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "jobId", "conf")
	Op       string // Operation that failed (e.g., "job.submit")
	RetCode  int    // Remote return code, set for ErrRemote
	Response string // Offending response body, set for ErrProtocol and ErrRemote
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel and, when present, the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Protocol creates an error for a response that violates the wire contract.
// The raw response is embedded in the message so contract violations stay visible.
func Protocol(op, reason string, response []byte) error {
	return &Error{
		Sentinel: ErrProtocol,
		Message:  fmt.Sprintf("%s: %s, response: %s", op, reason, truncate(response)),
		Op:       op,
		Response: string(response),
	}
}

// Remote creates an error for a well-formed response carrying a non-zero return code.
func Remote(op string, retCode int, retMsg string, response []byte) error {
	return &Error{
		Sentinel: ErrRemote,
		Message:  fmt.Sprintf("%s: retcode %d: %s", op, retCode, retMsg),
		Op:       op,
		RetCode:  retCode,
		Response: string(response),
	}
}

// Transport creates an error for a failed exchange with the remote service.
func Transport(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransport,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// JobFailed reports a monitored job that ended in the failed state. The
// service does not say why; the message points at the board and flow cli.
func JobFailed(jobID string) error {
	return &Error{
		Sentinel: ErrJobFailed,
		Message:  fmt.Sprintf("job %s failed, please check it out by board or flow cli", jobID),
		Field:    "jobId",
		Op:       "job.monitor",
	}
}

const maxEmbeddedResponse = 2048

func truncate(b []byte) string {
	if len(b) <= maxEmbeddedResponse {
		return string(b)
	}
	return string(b[:maxEmbeddedResponse]) + "...(truncated)"
}
