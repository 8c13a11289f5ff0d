// Package auth holds credentials for the Jira APIs and keeps OAuth
// bearer tokens fresh. Basic credentials are static for the lifetime
// of a run; bearer credentials refresh through TokenRefresher when
// they expire.
package auth

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/atlasync/atlasync/pkg/errors"
)

// Kind discriminates credential variants.
type Kind string

const (
	// KindBasic is username/password (or email/API token) auth.
	KindBasic Kind = "basic"
	// KindBearer is OAuth 2.0 bearer token auth.
	KindBearer Kind = "bearer"
)

// Credential is a tagged union of basic and bearer credentials. Bearer
// token material lives in an oauth2.Token; a zero Expiry means the
// token never expires. Only the refresher mutates a credential, under
// the mutex, so readers never observe a half-updated token/expiry pair.
type Credential struct {
	kind Kind

	username string
	password string

	clientID     string
	clientSecret string
	token        oauth2.Token

	mu sync.Mutex
}

// NewBasicCredential creates a basic credential. Both username and
// password are required.
func NewBasicCredential(username, password string) (*Credential, error) {
	if username == "" || password == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "basic credential requires username and password")
	}
	return &Credential{
		kind:     KindBasic,
		username: username,
		password: password,
	}, nil
}

// NewBearerCredential creates a bearer credential. An access token is
// required; refresh token, client id/secret and expiry are optional
// and only needed when the token should be refreshable.
func NewBearerCredential(accessToken, refreshToken, clientID, clientSecret string, expiresAt time.Time) (*Credential, error) {
	if accessToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "bearer credential requires an access token")
	}
	return &Credential{
		kind:         KindBearer,
		clientID:     clientID,
		clientSecret: clientSecret,
		token: oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			Expiry:       expiresAt,
		},
	}, nil
}

// FromConfig builds a credential from connector credential settings.
// authType "basic" reads username/password (falling back to
// email/api_token), "oauth2" reads access_token, refresh_token,
// client_id, client_secret and an optional RFC 3339 expires_at.
func FromConfig(authType string, creds map[string]string) (*Credential, error) {
	switch authType {
	case "", "basic":
		username := creds["username"]
		if username == "" {
			username = creds["email"]
		}
		password := creds["password"]
		if password == "" {
			password = creds["api_token"]
		}
		return NewBasicCredential(username, password)

	case "oauth2", "bearer":
		var expiresAt time.Time
		if raw := creds["expires_at"]; raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid expires_at, expected RFC 3339")
			}
			expiresAt = parsed
		}
		return NewBearerCredential(
			creds["access_token"],
			creds["refresh_token"],
			creds["client_id"],
			creds["client_secret"],
			expiresAt,
		)

	default:
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unsupported auth type %q", authType))
	}
}

// Kind returns the credential kind.
func (c *Credential) Kind() Kind {
	return c.kind
}

// Expired reports whether a bearer credential has reached its expiry.
// Basic credentials and bearer tokens without an expiry never expire.
func (c *Credential) Expired(now time.Time) bool {
	if c.kind != KindBearer {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.token.Expiry)
}

// AccessToken returns the current bearer access token.
func (c *Credential) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.AccessToken
}

// Expiry returns the current bearer token expiry.
func (c *Credential) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.Expiry
}

// BasicAuth returns the username and password of a basic credential.
func (c *Credential) BasicAuth() (string, string) {
	return c.username, c.password
}

// refreshParams returns the fields the refresher needs.
func (c *Credential) refreshParams() (clientID, clientSecret, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID, c.clientSecret, c.token.RefreshToken
}

// update replaces the token material after a successful refresh. An
// empty refreshToken keeps the existing one.
func (c *Credential) update(accessToken, refreshToken string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token.AccessToken = accessToken
	if refreshToken != "" {
		c.token.RefreshToken = refreshToken
	}
	c.token.Expiry = expiry
}
