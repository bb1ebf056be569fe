package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	config config.DevAuthConfig
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.DevAuthConfig) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
	}
}

// Create generates a new refresh token and stores it
func (m *Manager) Create(userID string, rememberMe bool) (string, error) {
	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:      tokenStr,
		UserID:     userID,
		RememberMe: rememberMe,
		Iat:        NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Rotate validates token, deletes it and issues its replacement for the same user.
func (m *Manager) Rotate(token string) (*StoredRefreshToken, string, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, "", errors.ErrInvalidRefreshToken
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return nil, "", errors.ErrRefreshTokenExpired
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, "", errors.ErrInvalidRefreshToken
	}

	next, err := m.Create(rt.UserID, rt.RememberMe)
	if err != nil {
		return nil, "", err
	}
	return rt, next, nil
}

// Revoke removes a single refresh token. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	_ = m.repo.Delete(token)
}

// RevokeAll removes every refresh token issued to userID and reports how many there were.
func (m *Manager) RevokeAll(userID string) (int, error) {
	return m.repo.DeleteByUserID(userID)
}

// IsExpired checks a refresh token against the configured lifetime
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	expiry := m.config.GetRefreshTokenExpiry()
	if rt.RememberMe {
		expiry = m.config.GetRememberMeRefreshTokenExpiry()
	}
	return NowTimeFunc().Sub(rt.Iat) > expiry
}
