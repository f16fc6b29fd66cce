package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientErrorTypes(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      ClientError
		wantType ErrorType
		contains string
		unwraps  bool
	}{
		{"network", NewNetworkError("request execution failed", cause), NetworkError, "network error: request execution failed: boom", true},
		{"network_no_cause", NewNetworkError("closed", nil), NetworkError, "network error: closed", false},
		{"timeout", NewTimeoutError("request timeout", 5*time.Second, cause), TimeoutError, "timeout: 5s", true},
		{"validation", NewValidationError("URL cannot be empty", "url"), ValidationError, "(field: url)", false},
		{"interceptor", NewInterceptorError("request interceptor failed", "request", cause), InterceptorError, "stage: request", true},
		{"canceled", NewCanceledError(2, context.Canceled), CanceledError, "after 2 attempt(s)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type())
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.True(t, IsErrorType(tt.err, tt.wantType))
			if tt.unwraps {
				assert.ErrorIs(t, tt.err, cause)
			}
		})
	}
}

func TestCanceledErrorUnwrapsContextError(t *testing.T) {
	err := NewCanceledError(1, context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsErrorType(t *testing.T) {
	assert.False(t, IsErrorType(nil, NetworkError))
	assert.False(t, IsErrorType(errors.New("plain"), NetworkError))
	assert.False(t, IsErrorType(NewNetworkError("x", nil), TimeoutError))

	wrapped := fmt.Errorf("outer: %w", NewTimeoutError("x", time.Second, nil))
	assert.True(t, IsErrorType(wrapped, TimeoutError))
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(299))
	assert.False(t, IsSuccessStatus(199))
	assert.False(t, IsSuccessStatus(300))
	assert.False(t, IsSuccessStatus(429))
}
