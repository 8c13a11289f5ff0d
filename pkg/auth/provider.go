package auth

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/atlasync/atlasync/pkg/errors"
)

// HeaderProvider produces the Authorization header for outgoing
// requests, refreshing expired bearer tokens on demand.
type HeaderProvider struct {
	cred      *Credential
	refresher *TokenRefresher
	now       func() time.Time
}

// NewHeaderProvider creates a header provider. The refresher may be
// nil for basic credentials or never-expiring bearer tokens.
func NewHeaderProvider(cred *Credential, refresher *TokenRefresher) *HeaderProvider {
	return &HeaderProvider{
		cred:      cred,
		refresher: refresher,
		now:       time.Now,
	}
}

// Headers returns the auth headers for a request. An expired bearer
// token triggers exactly one refresh before the headers are returned;
// a non-expired token never refreshes.
func (p *HeaderProvider) Headers(ctx context.Context) (map[string]string, error) {
	switch p.cred.Kind() {
	case KindBasic:
		username, password := p.cred.BasicAuth()
		encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		return map[string]string{"Authorization": "Basic " + encoded}, nil

	case KindBearer:
		if p.cred.Expired(p.now()) {
			if p.refresher == nil {
				return nil, errors.New(errors.ErrorTypeAuthentication,
					"access token expired and no refresher is configured")
			}
			if err := p.refresher.Refresh(ctx, p.cred); err != nil {
				return nil, err
			}
		}
		return map[string]string{"Authorization": "Bearer " + p.cred.AccessToken()}, nil

	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown credential kind")
	}
}
