// Package twitchapi contains minimal helpers for the Twitch Helix API:
// user id resolution and the moderation endpoints (ban/timeout/unban) the
// escalation executor needs, plus app and user token plumbing.
package twitchapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const tokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials)
// token via golang.org/x/oauth2. NOTE: app tokens cannot be used for IRC
// chat; chat needs a user token with chat:read/chat:edit scopes.
type TokenSource struct {
	ClientID     string
	ClientSecret string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// Get returns a valid app access token, refreshing when close to expiry.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Until(ts.expiry) > time.Minute {
		return ts.token, nil
	}
	cfg := &clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     tokenURL,
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", err
	}
	ts.token = tok.AccessToken
	ts.expiry = tok.Expiry
	return ts.token, nil
}

// StaticTokenSource adapts a fixed token (tests, pre-provisioned tokens).
type StaticTokenSource string

func (s StaticTokenSource) Get(ctx context.Context) (string, error) { return string(s), nil }

// tokenGetter is what HelixClient actually needs.
type tokenGetter interface {
	Get(ctx context.Context) (string, error)
}

var _ tokenGetter = (*TokenSource)(nil)
var _ tokenGetter = StaticTokenSource("")

// defaultHTTPClient keeps Helix calls bounded.
var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}
