package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConstructorsSetTypeAndRetryable(t *testing.T) {
	cause := errors.New("boom")

	cases := []struct {
		name      string
		err       *AppError
		errType   ErrorType
		retryable bool
	}{
		{"transfer", NewTransferError("failed", cause), ErrTypeTransfer, false},
		{"cancelled", NewCancelledError("aborted"), ErrTypeCancelled, false},
		{"resolution", NewResolutionError("no source", cause), ErrTypeResolution, false},
		{"reconciliation", NewReconciliationError("pl-1", cause), ErrTypeReconciliation, true},
		{"store", NewStoreError("db locked", cause), ErrTypeStore, false},
		{"network", NewNetworkError("timeout", cause), ErrTypeNetwork, true},
		{"validation", NewValidationError("bad input"), ErrTypeValidation, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Type != tc.errType {
				t.Errorf("Expected type %s, got %s", tc.errType, tc.err.Type)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("Expected retryable=%v", tc.retryable)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStoreError("write failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

func TestClassifiersOnWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("while downloading: %w", NewCancelledError("stopped"))

	if !IsCancelled(wrapped) {
		t.Error("Expected IsCancelled through wrapping")
	}
	if GetErrorType(wrapped) != ErrTypeCancelled {
		t.Errorf("Expected cancelled type, got %s", GetErrorType(wrapped))
	}

	if IsTransferError(wrapped) {
		t.Error("Cancelled error must not classify as transfer")
	}
	if GetErrorType(errors.New("plain")) != ErrTypeUnknown {
		t.Error("Plain errors must classify as unknown")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("Plain errors must not be retryable")
	}
}

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: IsRetryable,
	}

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return NewNetworkError("flaky", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableShortCircuits(t *testing.T) {
	cfg := DefaultRetryConfig()

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		return NewValidationError("bad request")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Non-retryable errors must not be retried, got %d attempts", attempts)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      2,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: IsRetryable,
	}

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		return NewNetworkError("still down", nil)
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("Expected initial attempt plus 2 retries, got %d", attempts)
	}
	if GetErrorType(err) != ErrTypeNetwork {
		t.Errorf("Expected wrapped network error, got %s", GetErrorType(err))
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      5,
		InitialBackoff:  time.Minute,
		MaxBackoff:      time.Minute,
		Multiplier:      2.0,
		RetryableErrors: IsRetryable,
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- RetryWithBackoff(ctx, cfg, func() error {
			attempts++
			return NewNetworkError("down", nil)
		})
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Expected cancellation error")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not observe cancellation")
	}
}

func TestCalculateBackoff(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second

	if got := calculateBackoff(0, initial, max, 2.0); got != initial {
		t.Errorf("Attempt 0 backoff = %v, want %v", got, initial)
	}
	if got := calculateBackoff(1, initial, max, 2.0); got != 200*time.Millisecond {
		t.Errorf("Attempt 1 backoff = %v, want 200ms", got)
	}
	if got := calculateBackoff(10, initial, max, 2.0); got != max {
		t.Errorf("Backoff must cap at %v, got %v", max, got)
	}
}
