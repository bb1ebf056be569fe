package session_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/storage"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/stretchr/testify/require"
)

func TestLogin_ThenAuthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	sess, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.True(t, f.manager.IsAuthenticated(ctx))

	require.Equal(t, "user-1", f.manager.UserID(ctx))
	require.Equal(t, "admin@sdt.com", f.manager.Email(ctx))
	require.Equal(t, []string{session.RoleAdmin}, f.manager.Roles(ctx))
	require.True(t, f.manager.HasRole(ctx, session.RoleAdmin))
	require.False(t, f.manager.HasRole(ctx, session.RoleDeliveryGuy))
	require.Equal(t, "company-1", f.manager.CompanyID(ctx))
	require.Empty(t, f.manager.ShopID(ctx))

	stored := f.snapshot(t)
	require.Equal(t, stored[session.KeyAccessToken], stored[session.KeyAuthToken])
	require.Equal(t, `["ADMIN"]`, stored[session.KeyUserRoles])
	require.Equal(t, "false", stored[session.KeyRememberMe])
	require.Equal(t, sess.ID, stored[session.KeySessionID])
}

func TestLogin_InvalidCredentialsLeavesStorageUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	before := f.snapshot(t)

	f.auth.set(func(a *fakeAuthServer) {
		a.loginStatus = http.StatusUnauthorized
		a.loginBody = map[string]string{"message": "Invalid credentials"}
	})
	_, err = f.manager.Login(ctx, "admin@sdt.com", "wrong", false)
	require.Error(t, err)
	require.ErrorIs(t, err, authclient.ErrInvalidCredentials)
	require.Equal(t, "Invalid credentials", err.Error())
	require.Equal(t, before, f.snapshot(t))
}

func TestLogin_InvalidCredentialsOnEmptyStorage(t *testing.T) {
	f := newFixture(t)
	f.auth.set(func(a *fakeAuthServer) {
		a.loginStatus = http.StatusUnauthorized
		a.loginBody = map[string]string{"message": "Invalid credentials"}
	})

	_, err := f.manager.Login(t.Context(), "admin@sdt.com", "wrong", false)
	require.Equal(t, "Invalid credentials", authclient.UserMessage(err))
	require.Empty(t, f.snapshot(t))
	require.False(t, f.manager.IsAuthenticated(t.Context()))
}

func TestLogin_OverwritesPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.auth.set(func(a *fakeAuthServer) {
		body := a.loginBody.(authclient.TokenResponse)
		body.ShopID = utils.Ptr("shop-9")
		a.loginBody = body
	})
	first, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", true)
	require.NoError(t, err)
	require.Equal(t, "shop-9", f.manager.ShopID(ctx))

	f.auth.set(func(a *fakeAuthServer) {
		a.loginBody = authclient.TokenResponse{
			AccessToken:  makeToken(t, "user-2", testNow.Add(15*time.Minute)),
			RefreshToken: "refresh-2",
			UserID:       "user-2",
			Email:        "manager@sdt.com",
			Roles:        []string{session.RoleManager},
		}
	})
	second, err := f.manager.Login(ctx, "manager@sdt.com", "Manager1234", false)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.Equal(t, "user-2", f.manager.UserID(ctx))
	require.Empty(t, f.manager.ShopID(ctx), "no merge with the previous session")
	require.Equal(t, "company-1", f.manager.CompanyID(ctx), "filled from the token claims")
	require.Equal(t, "false", f.store.Raw(ctx, session.KeyRememberMe))
}

func TestLogin_FillsMissingFieldsFromToken(t *testing.T) {
	f := newFixture(t)
	f.auth.set(func(a *fakeAuthServer) {
		a.loginBody = authclient.TokenResponse{
			AccessToken:  makeToken(t, "user-7", testNow.Add(15*time.Minute)),
			RefreshToken: "refresh-7",
		}
	})

	sess, err := f.manager.Login(t.Context(), "user-7@sdt.com", "pw", false)
	require.NoError(t, err)
	require.Equal(t, "user-7", sess.UserID)
	require.Equal(t, "user-7@sdt.com", sess.Email)
	require.Equal(t, []string{session.RoleManager}, sess.Roles)
}

func TestLogin_IncompleteResponsePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.auth.set(func(a *fakeAuthServer) {
		a.loginBody = authclient.TokenResponse{AccessToken: makeToken(t, "user-1", testNow.Add(time.Hour))}
	})

	_, err := f.manager.Login(t.Context(), "admin@sdt.com", "Admin1234", false)
	require.ErrorIs(t, err, session.ErrIncompleteSession)
	require.Empty(t, f.snapshot(t))
}

func TestLogin_VerifierRejectsUnsignedToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier := token.NewVerifier("", &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})

	f := newFixture(t, session.WithVerifier(verifier))
	_, err = f.manager.Login(t.Context(), "admin@sdt.com", "Admin1234", false)
	require.ErrorIs(t, err, session.ErrUntrustedToken)
	require.Empty(t, f.snapshot(t))
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	nav := &navRecorder{}

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	f.manager.Logout(ctx, nav.navigate)
	require.Empty(t, f.snapshot(t))
	require.False(t, f.manager.IsAuthenticated(ctx))

	f.manager.Logout(ctx, nav.navigate)
	require.Empty(t, f.snapshot(t))
	require.False(t, f.manager.IsAuthenticated(ctx))

	require.Equal(t, []string{"/", "/"}, nav.calls())
	require.Equal(t, int32(1), f.auth.logoutCalls.Load(), "nothing to revoke the second time")
}

func TestLogout_ServerFailureStillClearsLocally(t *testing.T) {
	f := newFixture(t, session.WithLoginPath("/login"))
	ctx := t.Context()
	nav := &navRecorder{}

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	f.auth.srv.Close()

	f.manager.Logout(ctx, nav.navigate)
	require.Empty(t, f.snapshot(t))
	require.Equal(t, []string{"/login"}, nav.calls())
}

func TestLogout_NilNavigate(t *testing.T) {
	f := newFixture(t)
	require.NotPanics(t, func() { f.manager.Logout(t.Context(), nil) })
}

func TestLogoutAllSessions_UsesBearerAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	nav := &navRecorder{}

	sess, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	f.manager.LogoutAllSessions(ctx, nav.navigate)
	require.Equal(t, "Bearer "+sess.AccessToken, f.auth.bearer())
	require.Empty(t, f.snapshot(t))
	require.Equal(t, []string{"/"}, nav.calls())
	require.Equal(t, int32(0), f.auth.refreshCalls.Load())
}

func TestLogoutAllSessions_RefreshesExpiredAccessTokenFirst(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	f.now = f.now.Add(20 * time.Minute)

	var refreshed string
	f.auth.set(func(a *fakeAuthServer) {
		refreshed = makeToken(t, "user-1", f.now.Add(15*time.Minute))
		a.refreshBody = func() any { return authclient.TokenResponse{AccessToken: refreshed} }
	})

	f.manager.LogoutAllSessions(ctx, nil)
	require.Equal(t, "Bearer "+refreshed, f.auth.bearer())
	require.Empty(t, f.snapshot(t))
}

func TestIsAuthenticated(t *testing.T) {
	tests := []struct {
		name     string
		access   time.Duration
		refresh  string
		identity bool
		want     bool
	}{
		{name: "valid access token", access: 10 * time.Minute, identity: true, want: true},
		{name: "access token inside skew", access: 20 * time.Second, identity: true, want: false},
		{name: "expired access, refresh present", access: -60 * time.Second, refresh: "refresh-1", identity: true, want: true},
		{name: "nothing stored", want: false},
		{name: "refresh only", refresh: "refresh-1", identity: true, want: true},
		{name: "tokens without identity", access: 10 * time.Minute, refresh: "refresh-1", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := t.Context()
			if tc.identity {
				f.storeIdentity(t)
			}
			if tc.access != 0 {
				require.NoError(t, f.repo.Set(ctx, session.KeyAccessToken, makeToken(t, "u", testNow.Add(tc.access)), 0))
			}
			if tc.refresh != "" {
				require.NoError(t, f.repo.Set(ctx, session.KeyRefreshToken, tc.refresh, 0))
			}
			require.Equal(t, tc.want, f.manager.IsAuthenticated(ctx))
		})
	}
}

func TestIsAuthenticated_OptimisticWhileAccessTokenExpired(t *testing.T) {
	f := newFixture(t, session.WithExpirySkew(30*time.Second))
	ctx := t.Context()
	access := makeToken(t, "user-1", testNow.Add(-60*time.Second))
	f.storeIdentity(t)
	require.NoError(t, f.repo.Set(ctx, session.KeyAccessToken, access, 0))
	require.NoError(t, f.repo.Set(ctx, session.KeyRefreshToken, "refresh-1", 0))

	require.True(t, f.manager.IsAuthenticated(ctx))
	require.True(t, token.IsExpired(access, 30*time.Second, testNow))
	require.True(t, f.manager.IsAccessTokenExpired(ctx))
}

func TestIsAuthenticated_SessionOnlyCredentialsExpire(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	f.now = f.now.Add(13 * time.Hour)
	require.False(t, f.manager.IsAuthenticated(ctx))

	f.now = testNow
	_, err = f.manager.Login(ctx, "admin@sdt.com", "Admin1234", true)
	require.NoError(t, err)
	f.now = f.now.Add(13 * time.Hour)
	require.True(t, f.manager.IsAuthenticated(ctx), "remember me keeps the refresh token")
}

func TestRefreshAccessToken_NoRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	access := makeToken(t, "user-1", testNow.Add(-time.Hour))
	require.NoError(t, f.repo.Set(ctx, session.KeyAccessToken, access, 0))
	before := f.snapshot(t)

	got, err := f.manager.RefreshAccessToken(ctx)
	require.ErrorIs(t, err, session.ErrNoRefreshToken)
	require.Empty(t, got)
	require.Equal(t, before, f.snapshot(t))
	require.Equal(t, int32(0), f.auth.refreshCalls.Load())
}

func TestRefreshAccessToken_Success(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	sess, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	newAccess := makeToken(t, "user-1", testNow.Add(45*time.Minute))
	f.auth.set(func(a *fakeAuthServer) {
		a.refreshBody = func() any {
			return authclient.TokenResponse{
				AccessToken:  newAccess,
				RefreshToken: "refresh-rotated",
				Roles:        []string{session.RoleAdmin, session.RoleManager},
				ShopID:       utils.Ptr("shop-3"),
			}
		}
	})

	got, err := f.manager.RefreshAccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, newAccess, got)
	require.NotEqual(t, sess.AccessToken, f.manager.AccessToken(ctx))
	require.Equal(t, newAccess, f.manager.AccessToken(ctx))
	require.Equal(t, newAccess, f.store.Raw(ctx, session.KeyAuthToken))
	require.Equal(t, "refresh-rotated", f.store.Raw(ctx, session.KeyRefreshToken))
	require.Equal(t, []string{session.RoleAdmin, session.RoleManager}, f.manager.Roles(ctx))
	require.Equal(t, "shop-3", f.manager.ShopID(ctx))
	require.Equal(t, "admin@sdt.com", f.manager.Email(ctx), "fields absent from the response are kept")
	require.Equal(t, "refresh-1", f.auth.refreshedWith())
	require.True(t, f.manager.IsAuthenticated(ctx))
}

func TestRefreshAccessToken_RejectedLeavesStorageUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	before := f.snapshot(t)

	f.auth.set(func(a *fakeAuthServer) { a.refreshStatus = http.StatusUnauthorized })
	got, err := f.manager.RefreshAccessToken(ctx)
	require.ErrorIs(t, err, session.ErrRefreshFailed)
	require.ErrorIs(t, err, authclient.ErrRefreshRejected)
	require.Empty(t, got)
	require.Equal(t, before, f.snapshot(t))
}

func TestRefreshAccessToken_NetworkFailure(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)
	before := f.snapshot(t)
	f.auth.srv.Close()

	_, err = f.manager.RefreshAccessToken(ctx)
	require.ErrorIs(t, err, session.ErrRefreshFailed)
	require.ErrorIs(t, err, authclient.ErrNetwork)
	require.Equal(t, before, f.snapshot(t))
}

func TestRefreshAccessToken_SingleFlight(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.auth.set(func(a *fakeAuthServer) { a.refreshGate = gate })

	const callers = 5
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.manager.RefreshAccessToken(ctx)
		}()
	}

	require.Eventually(t, func() bool { return f.auth.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.Equal(t, int32(1), f.auth.refreshCalls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
}

func TestRefreshAccessToken_DiscardedAfterLogout(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.auth.set(func(a *fakeAuthServer) { a.refreshGate = gate })

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.RefreshAccessToken(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.auth.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.manager.Logout(ctx, nil)
	close(gate)

	require.ErrorIs(t, <-done, session.ErrSessionChanged)
	require.Empty(t, f.snapshot(t), "a late refresh must not repopulate storage")
	require.False(t, f.manager.IsAuthenticated(ctx))
}

func TestRefreshAccessToken_DiscardedAfterNewLogin(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.auth.set(func(a *fakeAuthServer) { a.refreshGate = gate })

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.RefreshAccessToken(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.auth.refreshCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", true)
	require.NoError(t, err)
	close(gate)

	require.ErrorIs(t, <-done, session.ErrSessionChanged)
	require.Equal(t, second.AccessToken, f.manager.AccessToken(ctx))
}

// hookedRepo runs a callback before every Get.
type hookedRepo struct {
	storage.Repo
	mu   sync.Mutex
	hook func(key string)
}

func (r *hookedRepo) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return r.Repo.Get(ctx, key)
}

func (r *hookedRepo) setHook(fn func(key string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

func TestRefreshAccessToken_LoginWhileReadingKeepsNewSession(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	repo := &hookedRepo{Repo: f.repo}
	manager := session.NewManager(
		authclient.New(f.auth.srv.URL, authclient.WithLogoutRetry(1, 0)),
		session.NewStore(repo),
		session.WithNowFunc(func() time.Time { return testNow }),
	)

	_, err := manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	otherAccess := makeToken(t, "user-2", testNow.Add(20*time.Minute))
	gate := make(chan struct{})
	f.auth.set(func(a *fakeAuthServer) {
		a.refreshGate = gate
		a.loginBody = authclient.TokenResponse{
			AccessToken:  otherAccess,
			RefreshToken: "refresh-2",
			UserID:       "user-2",
			Email:        "user-2@sdt.com",
			Roles:        []string{session.RoleManager},
		}
	})

	var (
		once     sync.Once
		loginErr error
	)
	loginDone := make(chan struct{})
	repo.setHook(func(key string) {
		if key != session.KeySessionID {
			return
		}
		once.Do(func() {
			go func() {
				_, loginErr = manager.Login(ctx, "user-2@sdt.com", "Secret123", false)
				close(loginDone)
			}()
			// Let the other login land here if the refresh does not hold the session lock.
			select {
			case <-loginDone:
			case <-time.After(100 * time.Millisecond):
			}
		})
	})
	go func() {
		<-loginDone
		close(gate)
	}()

	_, err = manager.RefreshAccessToken(ctx)
	<-loginDone
	require.NoError(t, loginErr)
	require.ErrorIs(t, err, session.ErrSessionChanged)
	require.Equal(t, "refresh-1", f.auth.refreshedWith())

	sess, err := manager.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-2", sess.UserID)
	require.Equal(t, otherAccess, sess.AccessToken)
	require.Equal(t, "refresh-2", sess.RefreshToken)
}

func TestRefreshAccessToken_KeepsWholeSessionAlive(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	sess, err := f.manager.Login(ctx, "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	// Thirteen hours of ten minute renewals outlast the twelve hour session-only TTL.
	for range 78 {
		f.now = f.now.Add(10 * time.Minute)
		_, err := f.manager.RefreshAccessToken(ctx)
		require.NoError(t, err)
	}

	require.True(t, f.manager.IsAuthenticated(ctx))
	current, err := f.manager.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, sess.ID, current.ID)
	require.Equal(t, "user-1", current.UserID)
	require.Equal(t, "admin@sdt.com", current.Email)
	require.Equal(t, current.AccessToken, f.store.Raw(ctx, session.KeyAuthToken))
}

func TestRefreshAccessToken_CallerCancellationOnlyStopsWaiting(t *testing.T) {
	f := newFixture(t)
	sess, err := f.manager.Login(t.Context(), "admin@sdt.com", "Admin1234", false)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.auth.set(func(a *fakeAuthServer) { a.refreshGate = gate })

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = f.manager.RefreshAccessToken(ctx)
	require.True(t, errors.Is(err, context.Canceled))

	close(gate)
	require.Eventually(t, func() bool {
		current := f.manager.AccessToken(t.Context())
		return current != "" && current != sess.AccessToken
	}, time.Second, 5*time.Millisecond)
}

func TestAccessors_NoSession(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.Empty(t, f.manager.UserID(ctx))
	require.Empty(t, f.manager.Email(ctx))
	require.Empty(t, f.manager.Roles(ctx))
	require.Empty(t, f.manager.CompanyID(ctx))
	require.Empty(t, f.manager.ShopID(ctx))
	require.Empty(t, f.manager.AccessToken(ctx))
	require.False(t, f.manager.HasRole(ctx, session.RoleAdmin))

	_, err := f.manager.Session(ctx)
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestAccessors_PartialSessionIsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	require.NoError(t, f.repo.Set(ctx, session.KeyAccessToken, makeToken(t, "user-1", testNow.Add(time.Hour)), 0))
	require.NoError(t, f.repo.Set(ctx, session.KeyUserID, "user-1", 0))

	require.Empty(t, f.manager.UserID(ctx))
	_, err := f.manager.Session(ctx)
	require.ErrorIs(t, err, session.ErrIncompleteSession)
}

func TestIsAuthenticated_ReadsLegacyAuthToken(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	access := makeToken(t, "user-1", testNow.Add(10*time.Minute))
	f.storeIdentity(t)
	require.NoError(t, f.repo.Set(ctx, session.KeyAuthToken, access, 0))

	require.True(t, f.manager.IsAuthenticated(ctx))
	require.False(t, f.manager.IsAccessTokenExpired(ctx))

	tok, err := f.manager.TokenSource(ctx).Token()
	require.NoError(t, err)
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, int32(0), f.auth.refreshCalls.Load())
}
