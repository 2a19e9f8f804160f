package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"order not found", NewOrderNotFoundError("order-1"), ErrCodeOrderNotFound, false},
		{"store read", NewStoreReadFailedError(assert.AnError), ErrCodeStoreReadFailed, true},
		{"store write", NewStoreWriteFailedError("order-1", assert.AnError), ErrCodeStoreWriteFailed, true},
		{"geo query", NewGeoQueryFailedError(assert.AnError), ErrCodeGeoQueryFailed, true},
		{"scorer not initialized", NewScorerNotInitializedError("image"), ErrCodeScorerNotInitialized, false},
		{"scorer unavailable", NewScorerUnavailableError("text", assert.AnError), ErrCodeScorerUnavailable, true},
		{"notification send", NewNotificationSendFailedError("email", assert.AnError), ErrCodeNotificationSendFailed, true},
		{"invalid trigger", NewInvalidTriggerError("missing orderId"), ErrCodeInvalidTrigger, false},
		{"pass timeout", NewPassTimeoutError("order-1", "scoring"), ErrCodePassTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Message)
			assert.False(t, tt.err.Timestamp.IsZero())
			assert.Contains(t, tt.err.Error(), string(tt.code))
		})
	}
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeStoreWriteFailed))
	assert.Equal(t, 3, GetRetryCount(ErrCodeGeoQueryFailed))
	assert.Equal(t, 2, GetRetryCount(ErrCodePassTimeout))
	assert.Equal(t, 0, GetRetryCount(ErrCodeOrderNotFound))
	assert.Equal(t, 0, GetRetryCount(ErrCodeInvalidTrigger))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeScorerUnavailable))
	assert.False(t, IsRetryableErrorCode(ErrCodeScorerNotInitialized))
}
