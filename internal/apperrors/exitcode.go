package apperrors

import (
	"context"
	"errors"
)

// Process exit codes used by flowctl.
const (
	ExitOK         = 0
	ExitJobFailed  = 1
	ExitValidation = 2
	ExitProtocol   = 3
	ExitRemote     = 4
	ExitTransport  = 5
	ExitInternal   = 6
	ExitCancelled  = 130
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, ErrJobFailed):
		return ExitJobFailed
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrProtocol):
		return ExitProtocol
	case errors.Is(err, ErrRemote):
		return ExitRemote
	case errors.Is(err, ErrTransport):
		return ExitTransport
	default:
		return ExitInternal
	}
}
