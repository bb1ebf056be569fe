package session

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-session/token"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

// TokenSource yields the stored access token, refreshing it first when it has expired.
// Tokens are not cached; every call reads the store.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	access := ts.m.store.accessToken(ts.ctx)
	if access == "" || token.IsExpired(access, ts.m.skew, ts.m.nowFunc()) {
		refreshed, err := ts.m.RefreshAccessToken(ts.ctx)
		if err != nil {
			return nil, err
		}
		access = refreshed
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if claims, err := token.Decode(access); err == nil && claims.HasExpiry() {
		tok.Expiry = claims.ExpiresAt.Add(-ts.m.skew)
	}
	return tok, nil
}

// HTTPClient returns a client that sends the session's bearer token on every request.
// A nil base uses http.DefaultTransport.
func (m *Manager) HTTPClient(ctx context.Context, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: m.TokenSource(ctx),
			Base:   base,
		},
	}
}
