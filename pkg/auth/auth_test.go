package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasync/atlasync/pkg/errors"
)

func TestNewBasicCredentialValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "user@example.com", "token", false},
		{"missing username", "", "token", true},
		{"missing password", "user@example.com", "", true},
		{"both missing", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewBasicCredential(tt.username, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindBasic, cred.Kind())
		})
	}
}

func TestNewBearerCredentialRequiresAccessToken(t *testing.T) {
	_, err := NewBearerCredential("", "refresh", "id", "secret", time.Time{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cred, err := NewBearerCredential("access", "", "", "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, KindBearer, cred.Kind())
}

func TestFromConfig(t *testing.T) {
	cred, err := FromConfig("basic", map[string]string{
		"email":     "user@example.com",
		"api_token": "secret",
	})
	require.NoError(t, err)
	username, password := cred.BasicAuth()
	assert.Equal(t, "user@example.com", username)
	assert.Equal(t, "secret", password)

	cred, err = FromConfig("oauth2", map[string]string{
		"access_token":  "at",
		"refresh_token": "rt",
		"client_id":     "cid",
		"client_secret": "cs",
		"expires_at":    "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, KindBearer, cred.Kind())
	assert.Equal(t, 2026, cred.Expiry().Year())

	_, err = FromConfig("kerberos", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	never, err := NewBearerCredential("at", "", "", "", time.Time{})
	require.NoError(t, err)
	assert.False(t, never.Expired(now))

	past, err := NewBearerCredential("at", "", "", "", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, past.Expired(now))

	exact, err := NewBearerCredential("at", "", "", "", now)
	require.NoError(t, err)
	assert.True(t, exact.Expired(now))

	future, err := NewBearerCredential("at", "", "", "", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, future.Expired(now))
}

func newTokenServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`))
	}))
}

func TestRefreshHappyPath(t *testing.T) {
	var calls int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	cred, err := NewBearerCredential("old-access", "old-refresh", "cid", "cs", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	tr := NewTokenRefresher(server.URL, nil)
	require.NoError(t, tr.Refresh(context.Background(), cred))

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, "new-access", cred.AccessToken())

	_, _, refreshToken := cred.refreshParams()
	assert.Equal(t, "new-refresh", refreshToken)

	expected := time.Now().UTC().Add(time.Hour)
	assert.WithinDuration(t, expected, cred.Expiry(), 5*time.Second)
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access","expires_in":60}`))
	}))
	defer server.Close()

	cred, err := NewBearerCredential("old-access", "old-refresh", "cid", "cs", time.Time{})
	require.NoError(t, err)

	tr := NewTokenRefresher(server.URL, nil)
	require.NoError(t, tr.Refresh(context.Background(), cred))

	_, _, refreshToken := cred.refreshParams()
	assert.Equal(t, "old-refresh", refreshToken)
}

func TestRefreshMissingClientIDMakesNoNetworkCall(t *testing.T) {
	var calls int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	cred, err := NewBearerCredential("old-access", "old-refresh", "", "cs", time.Time{})
	require.NoError(t, err)

	tr := NewTokenRefresher(server.URL, nil)
	err = tr.Refresh(context.Background(), cred)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
	assert.Equal(t, "old-access", cred.AccessToken())
}

func TestRefreshServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cred, err := NewBearerCredential("old-access", "old-refresh", "cid", "cs", time.Time{})
	require.NoError(t, err)

	tr := NewTokenRefresher(server.URL, nil)
	err = tr.Refresh(context.Background(), cred)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Contains(t, err.Error(), server.URL)
}

func TestRefreshMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	cred, err := NewBearerCredential("old-access", "old-refresh", "cid", "cs", time.Time{})
	require.NoError(t, err)

	tr := NewTokenRefresher(server.URL, nil)
	err = tr.Refresh(context.Background(), cred)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestHeaderProviderBasic(t *testing.T) {
	cred, err := NewBasicCredential("user@example.com", "token")
	require.NoError(t, err)

	headers, err := NewHeaderProvider(cred, nil).Headers(context.Background())
	require.NoError(t, err)

	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("user@example.com:token"))
	assert.Equal(t, expected, headers["Authorization"])
}

func TestHeaderProviderNonExpiredNeverRefreshes(t *testing.T) {
	var calls int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	cred, err := NewBearerCredential("access", "refresh", "cid", "cs", time.Now().Add(time.Hour))
	require.NoError(t, err)

	provider := NewHeaderProvider(cred, NewTokenRefresher(server.URL, nil))

	for i := 0; i < 3; i++ {
		headers, err := provider.Headers(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer access", headers["Authorization"])
	}

	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
}

func TestHeaderProviderExpiredRefreshesExactlyOnce(t *testing.T) {
	var calls int64
	server := newTokenServer(t, &calls)
	defer server.Close()

	cred, err := NewBearerCredential("stale", "refresh", "cid", "cs", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	provider := NewHeaderProvider(cred, NewTokenRefresher(server.URL, nil))

	headers, err := provider.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer new-access", headers["Authorization"])
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	// The refreshed token is valid for an hour, so no further refreshes.
	headers, err = provider.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer new-access", headers["Authorization"])
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}
