// Package errors provides standardized error handling for the matching engine.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeOrderNotFound    ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeStoreReadFailed  ErrorCode = "STORE_READ_FAILED"
	ErrCodeStoreWriteFailed ErrorCode = "STORE_WRITE_FAILED"

	ErrCodeGeoQueryFailed ErrorCode = "GEO_QUERY_FAILED"

	ErrCodeScorerNotInitialized ErrorCode = "SCORER_NOT_INITIALIZED"
	ErrCodeScorerUnavailable    ErrorCode = "SCORER_UNAVAILABLE"
	ErrCodeNoScore              ErrorCode = "NO_SCORE"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInvalidTrigger ErrorCode = "INVALID_TRIGGER"
	ErrCodePassTimeout    ErrorCode = "PASS_TIMEOUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewOrderNotFoundError creates a non-retryable missing order error.
func NewOrderNotFoundError(orderID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderNotFound,
		Message:   "Order not found in store",
		Details:   fmt.Sprintf("orderId: %s", orderID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreReadFailedError creates a retryable order store read error.
func NewStoreReadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreReadFailed,
		Message:   "Order store read failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreWriteFailedError creates a retryable order store write error.
func NewStoreWriteFailedError(orderID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Order store write failed",
		Details:   fmt.Sprintf("orderId: %s, error: %s", orderID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGeoQueryFailedError creates a retryable agent directory query error.
func NewGeoQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeoQueryFailed,
		Message:   "Agent geo query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScorerNotInitializedError creates a non-retryable lifecycle error.
// Distinct from a scorer that initialized but failed on a given pair.
func NewScorerNotInitializedError(modality string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScorerNotInitialized,
		Message:   "Similarity scorer not initialized",
		Details:   fmt.Sprintf("modality: %s", modality),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScorerUnavailableError creates a retryable scorer backend error.
func NewScorerUnavailableError(modality string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScorerUnavailable,
		Message:   "Similarity scorer backend unavailable",
		Details:   fmt.Sprintf("modality: %s, error: %s", modality, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTriggerError creates a non-retryable trigger payload error.
func NewInvalidTriggerError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTrigger,
		Message:   "Matching trigger payload is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPassTimeoutError creates a retryable pass deadline error.
func NewPassTimeoutError(orderID, state string) *StandardError {
	return &StandardError{
		Code:      ErrCodePassTimeout,
		Message:   "Matching pass deadline exceeded",
		Details:   fmt.Sprintf("orderId: %s, state: %s", orderID, state),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for the external
// scheduler that re-triggers failed passes.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreReadFailed,
		ErrCodeStoreWriteFailed,
		ErrCodeGeoQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeScorerUnavailable:
		return 3

	case ErrCodePassTimeout:
		return 2

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
