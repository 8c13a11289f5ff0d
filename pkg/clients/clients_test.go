package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenBucketAllow(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(10, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	// Burst exhausted.
	assert.False(t, limiter.Allow())

	stats := limiter.GetStats()
	assert.Equal(t, int64(2), stats.AllowedRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(0.1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketRefill(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(100, 1)
	require.True(t, limiter.Allow())
	require.False(t, limiter.Allow())

	time.Sleep(25 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	})

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	assert.False(t, cb.Allow())
	assert.Equal(t, "open", cb.GetState().State)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	cb.RecordFailure()
	require.Equal(t, "open", cb.GetState().State)

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.Allow())
	assert.Equal(t, "half_open", cb.GetState().State)

	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, "closed", cb.GetState().State)
}

func TestCircuitBreakerExecute(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	})

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, int64(1), cb.GetState().TotalRequests)
}

func TestHTTPClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	config := DefaultHTTPConfig()
	config.RateLimit = 0
	config.CircuitBreakerEnabled = false
	client := NewHTTPClient(config, zap.NewNop())
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL, map[string]string{
		"Authorization": "Bearer token-123",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), client.GetStats().TotalRequests)
}
