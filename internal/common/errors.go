package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. The orchestrator retries only
// ErrServiceUnavailable freely and ErrMalformedOutput a bounded number of
// times; everything else is terminal for the attempt.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInputTooLarge      = errors.New("input too large")
	ErrNotReady           = errors.New("documents not ready for matching")
	ErrAlreadyInProgress  = errors.New("processing already in progress")
	ErrConflict           = errors.New("concurrent state change")
	ErrServiceUnavailable = errors.New("extraction service unavailable")
	ErrMalformedOutput    = errors.New("malformed extraction output")
	ErrInternal           = errors.New("internal error")
)

// NewAppError builds an AppError wrapping cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether the orchestrator may retry err within its
// transient budget.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// GRPCError maps taxonomy errors onto gRPC status errors at the service
// boundary. Callers never see the internal taxonomy, only a code plus the
// message string.
func GRPCError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInputTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrAlreadyInProgress), errors.Is(err, ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrServiceUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalErrorf(format string, args ...interface{}) error {
	return status.Error(codes.Internal, fmt.Sprintf(format, args...))
}
