// Package guard keeps a protected view's session alive: it checks authentication when the
// view mounts and renews the access token on a fixed interval until the view unmounts.
package guard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State int

const (
	Unchecked State = iota
	Checking
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// SessionManager is the part of *session.Manager the guard drives.
type SessionManager interface {
	IsAuthenticated(ctx context.Context) bool
	RefreshAccessToken(ctx context.Context) (string, error)
	Logout(ctx context.Context, navigate session.NavigateFunc)
}

var _ SessionManager = (*session.Manager)(nil)

// Ticker is the subset of *time.Ticker the refresh loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// ProtectedView is the per-view state machine.
type ProtectedView struct {
	manager     SessionManager
	navigate    session.NavigateFunc
	interval    time.Duration
	publicPaths []string
	newTicker   TickerFunc
	logger      zerolog.Logger
	onChange    func(State)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{} // owned by Unmount, cleared on a forced logout
	exited chan struct{} // closed when the latest refresh loop returns
}

type Option func(*ProtectedView)

func WithInterval(d time.Duration) Option {
	return func(v *ProtectedView) {
		if d > 0 {
			v.interval = d
		}
	}
}

// WithPublicPaths lists paths that skip the authentication check entirely.
func WithPublicPaths(paths ...string) Option {
	return func(v *ProtectedView) {
		v.publicPaths = paths
	}
}

func WithTicker(fn TickerFunc) Option {
	return func(v *ProtectedView) {
		v.newTicker = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(v *ProtectedView) {
		v.logger = logger
	}
}

// WithStateListener is called on every state transition, outside the view's lock.
func WithStateListener(fn func(State)) Option {
	return func(v *ProtectedView) {
		v.onChange = fn
	}
}

func NewProtectedView(manager SessionManager, navigate session.NavigateFunc, options ...Option) *ProtectedView {
	v := &ProtectedView{
		manager:     manager,
		navigate:    navigate,
		interval:    10 * time.Minute,
		publicPaths: []string{"/"},
		newTicker:   newTimeTicker,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

func (v *ProtectedView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Mount runs the authentication check for path and, when it passes, starts the refresh loop.
// Mounting an already mounted view is a no-op.
func (v *ProtectedView) Mount(ctx context.Context, path string) State {
	if slices.Contains(v.publicPaths, path) {
		v.logger.Debug().Str("path", path).Msg("public path, skipping session check")
		return v.State()
	}

	v.mu.Lock()
	if v.done != nil || v.state == Checking {
		state := v.state
		v.mu.Unlock()
		return state
	}
	v.state = Checking
	v.mu.Unlock()
	v.notify(Checking)

	if !v.manager.IsAuthenticated(ctx) {
		v.setState(Unauthenticated)
		v.logger.Info().Str("path", path).Msg("not authenticated, redirecting")
		v.manager.Logout(ctx, v.navigate)
		return Unauthenticated
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	ticker := v.newTicker(v.interval)

	v.mu.Lock()
	v.state = Authenticated
	v.cancel = cancel
	v.done = done
	v.exited = done
	v.mu.Unlock()
	v.notify(Authenticated)

	go v.refreshLoop(loopCtx, ticker, done)
	return Authenticated
}

// Unmount stops the refresh timer and waits for the loop to exit. A refresh request already
// on the wire is left to finish in the background.
func (v *ProtectedView) Unmount() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (v *ProtectedView) refreshLoop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !v.tick(ctx) {
				return
			}
		}
	}
}

// tick renews the token once and reports whether the loop should keep going. Cancelling ctx
// stops the wait but not the request, which the manager finishes on its own.
func (v *ProtectedView) tick(ctx context.Context) bool {
	_, err := v.manager.RefreshAccessToken(ctx)
	if err == nil {
		v.logger.Debug().Msg("session renewed")
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, session.ErrSessionChanged) && v.manager.IsAuthenticated(ctx) {
		v.logger.Debug().Msg("session replaced during refresh, keeping view")
		return true
	}

	v.logger.Warn().Err(err).Msg("session renewal failed, logging out")
	cancel := v.detach()
	v.setState(Unauthenticated)
	v.manager.Logout(ctx, v.navigate)
	cancel()
	return false
}

// detach gives up Unmount's hold on the running loop so the navigate callback can unmount
// the view from inside the loop. The loop is about to return on its own.
func (v *ProtectedView) detach() context.CancelFunc {
	v.mu.Lock()
	defer v.mu.Unlock()
	cancel := v.cancel
	v.cancel, v.done = nil, nil
	if cancel == nil {
		return func() {}
	}
	return cancel
}

func (v *ProtectedView) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
	v.notify(s)
}

func (v *ProtectedView) notify(s State) {
	if v.onChange != nil {
		v.onChange(s)
	}
}

// Wait blocks until the refresh loop has exited, or ctx ends.
func (v *ProtectedView) Wait(ctx context.Context) error {
	v.mu.Lock()
	done := v.exited
	v.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
