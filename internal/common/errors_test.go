package common

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{ErrNotFound, codes.NotFound},
		{ErrInvalidInput, codes.InvalidArgument},
		{ErrInputTooLarge, codes.InvalidArgument},
		{ErrNotReady, codes.FailedPrecondition},
		{ErrAlreadyInProgress, codes.Aborted},
		{ErrConflict, codes.Aborted},
		{ErrServiceUnavailable, codes.Unavailable},
		{ErrMalformedOutput, codes.Internal},
		{errors.New("anything else"), codes.Internal},
	}
	for _, tc := range cases {
		got := status.Code(GRPCError(tc.err))
		if got != tc.want {
			t.Fatalf("GRPCError(%v): expected %v, got %v", tc.err, tc.want, got)
		}
	}
	if GRPCError(nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}

func TestGRPCErrorSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("query match results: %w", WrapError(ErrNotFound, "match result"))
	if got := status.Code(GRPCError(wrapped)); got != codes.NotFound {
		t.Fatalf("expected NotFound through wrapping, got %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("call failed: %w", ErrServiceUnavailable)) {
		t.Fatalf("wrapped ErrServiceUnavailable must be retryable")
	}
	for _, err := range []error{ErrMalformedOutput, ErrInvalidInput, ErrInputTooLarge, ErrNotFound} {
		if IsRetryable(err) {
			t.Fatalf("%v must not be retryable", err)
		}
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	appErr := NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	if !errors.Is(appErr, ErrInvalidInput) {
		t.Fatalf("AppError must unwrap to its cause")
	}
	if appErr.Error() == "" {
		t.Fatalf("expected a formatted message")
	}
}
