package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// NavigateFunc sends the user to path. The host decides what navigating means.
type NavigateFunc func(path string)

// AuthAPI is the remote side of the session; *authclient.Client implements it.
type AuthAPI interface {
	Login(ctx context.Context, req authclient.LoginRequest) (*authclient.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*authclient.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, accessToken string) error
}

var _ AuthAPI = (*authclient.Client)(nil)

const refreshKey = "refresh"

// Manager maintains the single authoritative session.
type Manager struct {
	api       AuthAPI
	store     *Store
	verifier  *token.Verifier
	logger    zerolog.Logger
	nowFunc   func() time.Time
	skew      time.Duration
	loginPath string

	// mu orders writes to the store so a refresh result is applied or discarded atomically
	// with respect to login and logout.
	mu       sync.Mutex
	inflight singleflight.Group
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithExpirySkew(skew time.Duration) Option {
	return func(m *Manager) {
		m.skew = skew
	}
}

// WithLoginPath sets where logout navigates to.
func WithLoginPath(path string) Option {
	return func(m *Manager) {
		m.loginPath = path
	}
}

// WithVerifier makes Login refuse access tokens that fail signature verification.
func WithVerifier(v *token.Verifier) Option {
	return func(m *Manager) {
		m.verifier = v
	}
}

func NewManager(api AuthAPI, store *Store, options ...Option) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		logger:    log.Logger,
		nowFunc:   time.Now,
		skew:      30 * time.Second,
		loginPath: "/",
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Manager) LoginPath() string {
	return m.loginPath
}

// Login authenticates against the server and replaces any stored session with the result.
// Rejections are *authclient.AuthError values whose Message can be shown as-is.
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) (*Session, error) {
	tr, err := m.api.Login(ctx, authclient.LoginRequest{
		Email:      email,
		Password:   password,
		RememberMe: rememberMe,
	})
	if err != nil {
		recordSessionEvent(ctx, opLogin, outcomeFailure)
		m.logger.Info().Err(err).Str("email", email).Msg("login rejected")
		return nil, err
	}

	sess, err := m.sessionFromResponse(ctx, tr, rememberMe)
	if err != nil {
		recordSessionEvent(ctx, opLogin, outcomeFailure)
		m.logger.Warn().Err(err).Str("email", email).Msg("unusable login response")
		return nil, &authclient.AuthError{Err: err, Message: authclient.UnexpectedResponseMessage}
	}

	m.mu.Lock()
	err = m.store.Replace(ctx, sess)
	m.mu.Unlock()
	if err != nil {
		recordSessionEvent(ctx, opLogin, outcomeFailure)
		return nil, fmt.Errorf("persist session: %w", err)
	}

	recordSessionEvent(ctx, opLogin, outcomeSuccess)
	m.logger.Info().Str("userId", sess.UserID).Strs("roles", sess.Roles).Bool("rememberMe", rememberMe).Msg("logged in")
	return sess, nil
}

func (m *Manager) sessionFromResponse(ctx context.Context, tr *authclient.TokenResponse, rememberMe bool) (*Session, error) {
	var (
		claims *token.Claims
		err    error
	)
	if m.verifier != nil {
		claims, err = m.verifier.Verify(ctx, tr.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUntrustedToken, err)
		}
	} else {
		claims, err = token.Decode(tr.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIncompleteSession, err)
		}
	}

	sess := &Session{
		ID:           uuid.NewString(),
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		UserID:       firstNonEmpty(tr.UserID, claims.Subject),
		Email:        firstNonEmpty(tr.Email, claims.Email),
		Roles:        tr.Roles,
		CompanyID:    firstNonEmpty(tr.CompanyID, claims.CompanyID),
		ShopID:       firstNonEmpty(utils.Value(tr.ShopID), claims.ShopID),
		RememberMe:   rememberMe,
	}
	if sess.Roles == nil {
		sess.Roles = claims.Roles
	}
	return sess, sess.Validate()
}

// IsAuthenticated is true when a non-expired access token is stored, or when only a refresh
// token is. The second case is optimistic: the caller is expected to refresh. A session missing
// its user id or email is never authenticated.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	if !m.store.hasIdentity(ctx) {
		return false
	}
	if access := m.store.accessToken(ctx); access != "" && !token.IsExpired(access, m.skew, m.nowFunc()) {
		return true
	}
	return m.store.Raw(ctx, KeyRefreshToken) != ""
}

// IsAccessTokenExpired checks the stored access token alone.
func (m *Manager) IsAccessTokenExpired(ctx context.Context) bool {
	return token.IsExpired(m.store.accessToken(ctx), m.skew, m.nowFunc())
}

// RefreshAccessToken exchanges the stored refresh token for a new access token. Concurrent
// callers share one request. On any error the stored session is left as it was and the caller
// should treat the session as no longer valid.
//
// The request itself is not bound to ctx; cancelling ctx only stops the wait.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	ch := m.inflight.DoChan(refreshKey, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	// The token and its epoch must come from the same stored session.
	m.mu.Lock()
	refreshToken := m.store.Raw(ctx, KeyRefreshToken)
	epoch := m.store.Raw(ctx, KeySessionID)
	m.mu.Unlock()
	if refreshToken == "" {
		recordSessionEvent(ctx, opRefresh, outcomeSkipped)
		return "", ErrNoRefreshToken
	}

	tr, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		recordSessionEvent(ctx, opRefresh, outcomeFailure)
		m.logger.Warn().Err(err).Msg("token refresh failed")
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if _, err := token.Decode(tr.AccessToken); err != nil {
		recordSessionEvent(ctx, opRefresh, outcomeFailure)
		m.logger.Warn().Err(err).Msg("refresh returned an undecodable access token")
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.Raw(ctx, KeySessionID) != epoch || m.store.Raw(ctx, KeyRefreshToken) == "" {
		recordSessionEvent(ctx, opRefresh, outcomeDiscarded)
		m.logger.Info().Msg("discarding refresh result for a session that has ended or been replaced")
		return "", ErrSessionChanged
	}

	err = m.store.apply(ctx, update{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		UserID:       tr.UserID,
		Email:        tr.Email,
		Roles:        tr.Roles,
		CompanyID:    tr.CompanyID,
		ShopID:       tr.ShopID,
	})
	if err != nil {
		recordSessionEvent(ctx, opRefresh, outcomeFailure)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	recordSessionEvent(ctx, opRefresh, outcomeSuccess)
	m.logger.Debug().Bool("rotated", tr.RefreshToken != "").Msg("access token refreshed")
	return tr.AccessToken, nil
}

// Logout clears the local session, tells the server to revoke the refresh token and navigates
// to the login path. Server errors are logged; logout always succeeds locally.
func (m *Manager) Logout(ctx context.Context, navigate NavigateFunc) {
	m.mu.Lock()
	refreshToken := m.store.Raw(ctx, KeyRefreshToken)
	m.clearLocked(ctx)
	m.mu.Unlock()

	if refreshToken != "" {
		if err := m.api.Logout(ctx, refreshToken); err != nil {
			recordSessionEvent(ctx, opLogout, outcomeFailure)
			m.logger.Warn().Err(err).Msg("server logout failed")
		} else {
			recordSessionEvent(ctx, opLogout, outcomeSuccess)
		}
	} else {
		recordSessionEvent(ctx, opLogout, outcomeSkipped)
	}
	m.navigate(navigate)
}

// LogoutAllSessions is Logout but asks the server to revoke every refresh token of the user,
// authenticated with the current access token. An expired access token is refreshed first.
func (m *Manager) LogoutAllSessions(ctx context.Context, navigate NavigateFunc) {
	accessToken := m.store.accessToken(ctx)
	if accessToken == "" || token.IsExpired(accessToken, m.skew, m.nowFunc()) {
		if refreshed, err := m.RefreshAccessToken(ctx); err == nil {
			accessToken = refreshed
		}
	}

	m.mu.Lock()
	m.clearLocked(ctx)
	m.mu.Unlock()

	if accessToken != "" {
		if err := m.api.LogoutAll(ctx, accessToken); err != nil {
			recordSessionEvent(ctx, opLogoutAll, outcomeFailure)
			m.logger.Warn().Err(err).Msg("server logout-all failed")
		} else {
			recordSessionEvent(ctx, opLogoutAll, outcomeSuccess)
		}
	} else {
		recordSessionEvent(ctx, opLogoutAll, outcomeSkipped)
	}
	m.navigate(navigate)
}

func (m *Manager) clearLocked(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error().Err(err).Msg("clearing local session")
	}
}

func (m *Manager) navigate(navigate NavigateFunc) {
	if navigate != nil {
		navigate(m.loginPath)
	}
}

// Session returns the stored session, or ErrNoSession.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	return m.store.Load(ctx)
}

func (m *Manager) current(ctx context.Context) *Session {
	sess, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.logger.Debug().Err(err).Msg("reading session")
		}
		return nil
	}
	return sess
}

func (m *Manager) UserID(ctx context.Context) string {
	if s := m.current(ctx); s != nil {
		return s.UserID
	}
	return ""
}

func (m *Manager) Email(ctx context.Context) string {
	if s := m.current(ctx); s != nil {
		return s.Email
	}
	return ""
}

func (m *Manager) Roles(ctx context.Context) []string {
	if s := m.current(ctx); s != nil {
		return s.Roles
	}
	return nil
}

func (m *Manager) HasRole(ctx context.Context, role string) bool {
	return m.current(ctx).HasRole(role)
}

// CompanyID returns the tenant scope, or "" when there is none.
func (m *Manager) CompanyID(ctx context.Context) string {
	if s := m.current(ctx); s != nil {
		return s.CompanyID
	}
	return ""
}

func (m *Manager) ShopID(ctx context.Context) string {
	if s := m.current(ctx); s != nil {
		return s.ShopID
	}
	return ""
}

func (m *Manager) AccessToken(ctx context.Context) string {
	if s := m.current(ctx); s != nil {
		return s.AccessToken
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
