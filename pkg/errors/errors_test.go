package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapturesTypeAndStack(t *testing.T) {
	err := New(ErrorTypeConfig, "missing credential")

	assert.Equal(t, ErrorTypeConfig, err.Type)
	assert.Equal(t, "config: missing credential", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrorTypeConnection, "token endpoint unreachable")

	require.NotNil(t, err)
	assert.Equal(t, "connection: token endpoint unreachable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(nil, ErrorTypeConnection, "ignored"))
}

func TestWrapPreservesOriginalStack(t *testing.T) {
	inner := New(ErrorTypeData, "bad envelope")
	outer := Wrap(inner, ErrorTypeInternal, "page parse failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeInternal))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeAuthentication, "refresh preconditions not met")

	assert.True(t, IsType(err, ErrorTypeAuthentication))
	assert.False(t, IsType(err, ErrorTypeConfig))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeAuthentication))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeAuthentication))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeConnection, true},
		{ErrorTypeConfig, false},
		{ErrorTypeAuthentication, false},
		{ErrorTypeData, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(New(tt.errType, "x")))
		})
	}

	assert.False(t, IsRetryable(errors.New("untyped")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeConnection, "request failed").
		WithDetail("endpoint", "https://auth.atlassian.com/oauth/token").
		WithDetail("status", 503)

	assert.Equal(t, "https://auth.atlassian.com/oauth/token", err.Details["endpoint"])
	assert.Equal(t, 503, err.Details["status"])
}
