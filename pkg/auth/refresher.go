package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/atlasync/atlasync/pkg/clients"
	"github.com/atlasync/atlasync/pkg/errors"
	"github.com/atlasync/atlasync/pkg/json"
	"github.com/atlasync/atlasync/pkg/logger"
	"github.com/atlasync/atlasync/pkg/metrics"
)

// DefaultTokenEndpoint is the Atlassian OAuth 2.0 token endpoint.
const DefaultTokenEndpoint = "https://auth.atlassian.com/oauth/token"

// TokenRefresher exchanges a refresh token for a new access token.
// Refresh failures are never retried here; the caller's retry policy
// owns backoff.
type TokenRefresher struct {
	endpoint string
	client   *clients.HTTPClient
	logger   *zap.Logger
}

// NewTokenRefresher creates a refresher against the given endpoint.
// An empty endpoint uses DefaultTokenEndpoint; a nil client gets a
// default HTTP client.
func NewTokenRefresher(endpoint string, client *clients.HTTPClient) *TokenRefresher {
	log := logger.Get().With(zap.String("component", "token_refresher"))
	if endpoint == "" {
		endpoint = DefaultTokenEndpoint
	}
	if client == nil {
		client = clients.NewHTTPClient(nil, log)
	}
	return &TokenRefresher{
		endpoint: endpoint,
		client:   client,
		logger:   log,
	}
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh performs a single token refresh and updates cred in place.
// Missing client_id, client_secret or refresh_token fails before any
// network I/O.
func (tr *TokenRefresher) Refresh(ctx context.Context, cred *Credential) error {
	clientID, clientSecret, refreshToken := cred.refreshParams()

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		metrics.TokenRefreshes.WithLabelValues("config_error").Inc()
		return errors.New(errors.ErrorTypeAuthentication,
			"token refresh requires client_id, client_secret and refresh_token")
	}

	body, err := json.Marshal(refreshRequest{
		GrantType:    "refresh_token",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
	})
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode token refresh request")
	}

	resp, err := tr.client.Post(ctx, tr.endpoint, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("token refresh request to %s failed", tr.endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return errors.New(errors.ErrorTypeConnection,
			fmt.Sprintf("token refresh request to %s failed with status %d", tr.endpoint, resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to read token response from %s", tr.endpoint))
	}

	var tokenResp refreshResponse
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to decode token response from %s", tr.endpoint))
	}

	if tokenResp.AccessToken == "" || tokenResp.ExpiresIn <= 0 {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return errors.New(errors.ErrorTypeConnection,
			fmt.Sprintf("token response from %s is missing access_token or expires_in", tr.endpoint))
	}

	expiry := time.Now().UTC().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	cred.update(tokenResp.AccessToken, tokenResp.RefreshToken, expiry)

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	tr.logger.Debug("access token refreshed", zap.Time("expiry", expiry))

	return nil
}
