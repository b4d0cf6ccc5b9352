package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypeTransfer represents a failed download transfer (network failure,
	// bad status, payload below the completeness threshold)
	ErrTypeTransfer ErrorType = "transfer"
	// ErrTypeCancelled represents a user-initiated abort of a transfer
	ErrTypeCancelled ErrorType = "cancelled"
	// ErrTypeResolution represents a playback source resolution failure
	ErrTypeResolution ErrorType = "resolution"
	// ErrTypeReconciliation represents a single playlist sync failure
	ErrTypeReconciliation ErrorType = "reconciliation"
	// ErrTypeStore represents a persistent-store I/O failure
	ErrTypeStore ErrorType = "store"
	// ErrTypeNetwork represents a transient network error
	ErrTypeNetwork ErrorType = "network"
	// ErrTypeValidation represents invalid input or configuration
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnknown represents unknown errors
	ErrTypeUnknown ErrorType = "unknown"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewTransferError creates a transfer error. Transfers are never retried
// automatically; the failed queue row is surfaced for manual retry.
func NewTransferError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeTransfer,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// NewCancelledError creates a cancellation error
func NewCancelledError(message string) *AppError {
	return &AppError{
		Type:      ErrTypeCancelled,
		Message:   message,
		Retryable: false,
	}
}

// NewResolutionError creates a playback resolution error
func NewResolutionError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeResolution,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// NewReconciliationError creates a reconciliation error for one playlist
func NewReconciliationError(playlistID string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeReconciliation,
		Message:   fmt.Sprintf("playlist %s sync failed", playlistID),
		Retryable: true,
		Cause:     cause,
	}
}

// NewStoreError creates a persistent-store error
func NewStoreError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeStore,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// NewNetworkError creates a transient network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:      ErrTypeValidation,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetErrorType returns the error type from an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeUnknown
}

// IsCancelled checks if an error is a cancellation
func IsCancelled(err error) bool {
	return GetErrorType(err) == ErrTypeCancelled
}

// IsTransferError checks if an error is a transfer failure
func IsTransferError(err error) bool {
	return GetErrorType(err) == ErrTypeTransfer
}

// IsStoreError checks if an error is a store failure
func IsStoreError(err error) bool {
	return GetErrorType(err) == ErrTypeStore
}
