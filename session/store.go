package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jrsteele09/go-auth-session/storage"
)

// Persisted keys.
const (
	KeyAccessToken  = "accessToken"
	KeyAuthToken    = "authToken" // legacy alias of accessToken
	KeyRefreshToken = "refreshToken"
	KeyUserID       = "userId"
	KeyUserEmail    = "userEmail"
	KeyUserRoles    = "userRoles"
	KeyCompanyID    = "companyId"
	KeyShopID       = "shopId"
	KeyRememberMe   = "rememberMe"
	KeySessionID    = "sessionId"
)

var allKeys = []string{
	KeyAccessToken, KeyAuthToken, KeyRefreshToken, KeyUserID, KeyUserEmail,
	KeyUserRoles, KeyCompanyID, KeyShopID, KeyRememberMe, KeySessionID,
}

// Store is the only reader and writer of the persisted session.
type Store struct {
	repo          storage.Repo
	rememberMeTTL time.Duration
	sessionTTL    time.Duration
}

type StoreOption func(*Store)

// WithTTLs sets how long credentials persist with and without "remember me". Zero never expires.
func WithTTLs(rememberMe, sessionOnly time.Duration) StoreOption {
	return func(s *Store) {
		s.rememberMeTTL = rememberMe
		s.sessionTTL = sessionOnly
	}
}

func NewStore(repo storage.Repo, options ...StoreOption) *Store {
	s := &Store{
		repo:          repo,
		rememberMeTTL: 30 * 24 * time.Hour,
		sessionTTL:    12 * time.Hour,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Load returns the stored session, or ErrNoSession when it is absent or partial.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:           s.Raw(ctx, KeySessionID),
		AccessToken:  s.accessToken(ctx),
		RefreshToken: s.Raw(ctx, KeyRefreshToken),
		UserID:       s.Raw(ctx, KeyUserID),
		Email:        s.Raw(ctx, KeyUserEmail),
		CompanyID:    s.Raw(ctx, KeyCompanyID),
		ShopID:       s.Raw(ctx, KeyShopID),
	}
	sess.RememberMe, _ = strconv.ParseBool(s.Raw(ctx, KeyRememberMe))
	if roles := s.Raw(ctx, KeyUserRoles); roles != "" {
		if err := json.Unmarshal([]byte(roles), &sess.Roles); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
	}

	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	return sess, nil
}

// Replace clears whatever is stored and writes sess in full.
func (s *Store) Replace(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}

	roles, err := json.Marshal(nonNil(sess.Roles))
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	values := map[string]string{
		KeySessionID:    sess.ID,
		KeyAccessToken:  sess.AccessToken,
		KeyAuthToken:    sess.AccessToken,
		KeyRefreshToken: sess.RefreshToken,
		KeyUserID:       sess.UserID,
		KeyUserEmail:    sess.Email,
		KeyUserRoles:    string(roles),
		KeyCompanyID:    sess.CompanyID,
		KeyShopID:       sess.ShopID,
		KeyRememberMe:   strconv.FormatBool(sess.RememberMe),
	}
	ttl := s.ttl(sess.RememberMe)
	for _, k := range allKeys {
		v := values[k]
		if v == "" {
			continue
		}
		if err := s.repo.Set(ctx, k, v, ttl); err != nil {
			_ = s.Clear(ctx)
			return fmt.Errorf("store %s: %w", k, err)
		}
	}
	return nil
}

// update is a refresh result; empty fields leave the stored value alone.
type update struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Email        string
	Roles        []string
	CompanyID    string
	ShopID       *string
}

// apply merges a refresh result into the stored session and rewrites every key, so the whole
// record shares one expiry measured from this write.
func (s *Store) apply(ctx context.Context, u update) error {
	values := make(map[string]string, len(allKeys))
	for _, k := range allKeys {
		values[k] = s.Raw(ctx, k)
	}
	values[KeyAccessToken] = s.accessToken(ctx)

	merge := func(key, value string) {
		if value != "" {
			values[key] = value
		}
	}
	merge(KeyAccessToken, u.AccessToken)
	merge(KeyRefreshToken, u.RefreshToken)
	merge(KeyUserID, u.UserID)
	merge(KeyUserEmail, u.Email)
	merge(KeyCompanyID, u.CompanyID)
	values[KeyAuthToken] = values[KeyAccessToken]
	if u.Roles != nil {
		roles, err := json.Marshal(u.Roles)
		if err != nil {
			return fmt.Errorf("encode roles: %w", err)
		}
		values[KeyUserRoles] = string(roles)
	}
	if u.ShopID != nil {
		values[KeyShopID] = *u.ShopID
	}

	rememberMe, _ := strconv.ParseBool(values[KeyRememberMe])
	ttl := s.ttl(rememberMe)
	var errs []error
	for _, k := range allKeys {
		if values[k] == "" {
			continue
		}
		if err := s.repo.Set(ctx, k, values[k], ttl); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", k, err))
		}
	}
	if values[KeyShopID] == "" {
		errs = append(errs, s.repo.Delete(ctx, KeyShopID))
	}
	return errors.Join(errs...)
}

// Clear removes every session key. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Raw returns a single stored value, or "" when it is missing or unreadable.
func (s *Store) Raw(ctx context.Context, key string) string {
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}

// accessToken reads the access token, falling back to the legacy authToken alias.
func (s *Store) accessToken(ctx context.Context) string {
	if access := s.Raw(ctx, KeyAccessToken); access != "" {
		return access
	}
	return s.Raw(ctx, KeyAuthToken)
}

// hasIdentity reports whether the non-token fields every session needs are stored.
func (s *Store) hasIdentity(ctx context.Context) bool {
	return s.Raw(ctx, KeyUserID) != "" && s.Raw(ctx, KeyUserEmail) != ""
}

func (s *Store) ttl(rememberMe bool) time.Duration {
	if rememberMe {
		return s.rememberMeTTL
	}
	return s.sessionTTL
}

func nonNil(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}
