package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/storage"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func makeToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"sub":       sub,
		"email":     sub + "@sdt.com",
		"roles":     []string{"MANAGER"},
		"companyId": "company-1",
		"iat":       exp.Add(-15 * time.Minute).Unix(),
		"exp":       exp.Unix(),
	}
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

// fakeAuthServer answers the four auth endpoints with canned behaviour.
type fakeAuthServer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	loginStatus   int
	loginBody     any
	refreshStatus int
	refreshBody   func() any
	refreshGate   chan struct{}
	lastBearer    string
	lastRefreshed string

	refreshCalls   atomic.Int32
	logoutCalls    atomic.Int32
	logoutAllCalls atomic.Int32
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	f := &fakeAuthServer{t: t, loginStatus: http.StatusOK, refreshStatus: http.StatusOK}
	f.loginBody = authclient.TokenResponse{
		AccessToken:  makeToken(t, "user-1", testNow.Add(15*time.Minute)),
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresIn:    900,
		UserID:       "user-1",
		Email:        "admin@sdt.com",
		Roles:        []string{session.RoleAdmin},
		CompanyID:    "company-1",
	}
	f.refreshBody = func() any {
		return authclient.TokenResponse{AccessToken: makeToken(t, "user-1", testNow.Add(30*time.Minute))}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+authclient.LoginPath, f.handleLogin)
	mux.HandleFunc("POST "+authclient.RefreshPath, f.handleRefresh)
	mux.HandleFunc("POST "+authclient.LogoutPath, func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST "+authclient.LogoutAllPath, func(w http.ResponseWriter, r *http.Request) {
		f.logoutAllCalls.Add(1)
		f.mu.Lock()
		f.lastBearer = r.Header.Get("Authorization")
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuthServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status, body := f.loginStatus, f.loginBody
	f.mu.Unlock()
	writeJSON(w, status, body)
}

func (f *fakeAuthServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	var req authclient.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	gate := f.refreshGate
	status, body := f.refreshStatus, f.refreshBody
	f.lastRefreshed = req.RefreshToken
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"message": "Invalid refresh token"})
		return
	}
	writeJSON(w, status, body())
}

func (f *fakeAuthServer) set(fn func(f *fakeAuthServer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAuthServer) refreshedWith() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRefreshed
}

func (f *fakeAuthServer) bearer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBearer
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type fixture struct {
	auth    *fakeAuthServer
	repo    *storage.MemoryRepo
	store   *session.Store
	manager *session.Manager
	now     time.Time
}

func newFixture(t *testing.T, options ...session.Option) *fixture {
	t.Helper()
	f := &fixture{auth: newFakeAuthServer(t), now: testNow}
	f.repo = storage.NewMemoryRepo(storage.WithMemoryNowFunc(func() time.Time { return f.now }))
	f.store = session.NewStore(f.repo)
	client := authclient.New(f.auth.srv.URL, authclient.WithLogoutRetry(1, 0))
	options = append([]session.Option{session.WithNowFunc(func() time.Time { return f.now })}, options...)
	f.manager = session.NewManager(client, f.store, options...)
	return f
}

// storeIdentity writes the non-token session fields directly.
func (f *fixture) storeIdentity(t *testing.T) {
	t.Helper()
	require.NoError(t, f.repo.Set(t.Context(), session.KeyUserID, "user-1", 0))
	require.NoError(t, f.repo.Set(t.Context(), session.KeyUserEmail, "admin@sdt.com", 0))
}

// snapshot copies every session key currently stored.
func (f *fixture) snapshot(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, k := range []string{
		session.KeyAccessToken, session.KeyAuthToken, session.KeyRefreshToken, session.KeyUserID,
		session.KeyUserEmail, session.KeyUserRoles, session.KeyCompanyID, session.KeyShopID,
		session.KeyRememberMe, session.KeySessionID,
	} {
		if v := f.store.Raw(t.Context(), k); v != "" {
			out[k] = v
		}
	}
	return out
}

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navRecorder) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}
