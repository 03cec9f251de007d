package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/session"
	"github.com/felixgeelhaar/campus/internal/token/tokentest"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
)

type stubBackend struct {
	mu         sync.Mutex
	refreshes  int
	refreshTTL time.Duration
	refreshErr error
}

func (b *stubBackend) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

func (b *stubBackend) Login(context.Context, string, string) (*platform.LoginResponse, error) {
	return &platform.LoginResponse{AccessToken: tokentest.Valid("Teacher", time.Hour), RefreshToken: "r1"}, nil
}
func (b *stubBackend) Logout(context.Context) error { return nil }
func (b *stubBackend) Refresh(context.Context, string) (*platform.RefreshResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes++
	if b.refreshErr != nil {
		return nil, b.refreshErr
	}
	return &platform.RefreshResponse{AccessToken: tokentest.Valid("Teacher", b.refreshTTL)}, nil
}
func (b *stubBackend) SendForgotPasswordEmail(context.Context, string) error          { return nil }
func (b *stubBackend) VerifyForgotPasswordCode(context.Context, string, string) error { return nil }
func (b *stubBackend) ResetForgottenPassword(context.Context, string, string, string) error {
	return nil
}
func (b *stubBackend) CurrentUser(context.Context) (*platform.User, error) {
	return &platform.User{}, nil
}

type countingNavigator struct {
	mu     sync.Mutex
	visits int
}

func (n *countingNavigator) Current() session.Location { return session.Location{Path: "/home"} }
func (n *countingNavigator) Navigate(session.Location) {
	n.mu.Lock()
	n.visits++
	n.mu.Unlock()
}
func (n *countingNavigator) Visits() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visits
}

type fixture struct {
	backend *stubBackend
	store   *tokenstore.MemoryStore
	ctrl    *session.Controller
	nav     *countingNavigator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &stubBackend{refreshTTL: time.Hour}
	store := tokenstore.NewMemoryStore()
	nav := &countingNavigator{}
	ctrl := session.New(store, backend, session.WithNavigator(nav), session.WithLogger(log.Nop()))
	return &fixture{backend: backend, store: store, ctrl: ctrl, nav: nav}
}

func (f *fixture) scheduler(t *testing.T, interval time.Duration) *Scheduler {
	t.Helper()
	s, err := NewScheduler(Config{
		Session:  f.ctrl,
		Tokens:   tokenstore.AccessToken{Store: f.store},
		Interval: interval,
		Logger:   log.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestNewScheduler(t *testing.T) {
	f := newFixture(t)

	s, err := NewScheduler(Config{Session: f.ctrl, Tokens: tokenstore.AccessToken{Store: f.store}})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.interval)
	assert.Equal(t, DefaultLookahead, s.lookahead)

	_, err = NewScheduler(Config{Tokens: tokenstore.AccessToken{Store: f.store}})
	assert.Error(t, err)
	_, err = NewScheduler(Config{Session: f.ctrl})
	assert.Error(t, err)
}

// A token ten seconds from expiry is refreshed on activation without any
// navigation.
func TestRefreshesExpiringToken(t *testing.T) {
	f := newFixture(t)
	f.store.Set(tokenstore.KeyAccessToken, tokentest.Valid("Teacher", 10*time.Second))
	f.store.Set(tokenstore.KeyRefreshToken, "r1")
	require.True(t, f.ctrl.Bootstrap().IsAuthenticated)

	s := f.scheduler(t, time.Hour)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return f.backend.Refreshes() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !f.ctrl.Snapshot().IsLoading }, time.Second, 5*time.Millisecond)

	access, _ := f.store.Get(tokenstore.KeyAccessToken)
	remaining, ok := f.ctrl.Validator().Remaining(access)
	require.True(t, ok)
	assert.Greater(t, remaining, 50*time.Minute)
	assert.True(t, f.ctrl.Snapshot().IsAuthenticated)
	assert.Zero(t, f.nav.Visits())
}

func TestSkipsFreshToken(t *testing.T) {
	f := newFixture(t)
	f.store.Set(tokenstore.KeyAccessToken, tokentest.Valid("Teacher", time.Hour))
	f.store.Set(tokenstore.KeyRefreshToken, "r1")
	f.ctrl.Bootstrap()

	s := f.scheduler(t, 20*time.Millisecond)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Checks() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, f.backend.Refreshes())
}

func TestIdleWhileAnonymousAndActivatesOnLogin(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap()

	s := f.scheduler(t, 10*time.Millisecond)
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, s.Checks(), "no checks while anonymous")

	require.NoError(t, f.ctrl.Login(context.Background(), "alice", "pw"))
	require.Eventually(t, func() bool { return s.Checks() >= 2 }, 2*time.Second, 5*time.Millisecond)

	f.ctrl.Logout(context.Background())
	time.Sleep(30 * time.Millisecond)
	settled := s.Checks()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, s.Checks(), "checks stop after logout")
}

func TestFailedRefreshDeactivates(t *testing.T) {
	f := newFixture(t)
	f.backend.refreshErr = errors.New(errors.ErrCodeUnauthorized, "invalid_refresh_token")
	f.store.Set(tokenstore.KeyAccessToken, tokentest.Valid("Teacher", 5*time.Second))
	f.store.Set(tokenstore.KeyRefreshToken, "r1")
	f.ctrl.Bootstrap()

	s := f.scheduler(t, 10*time.Millisecond)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return !f.ctrl.Snapshot().IsAuthenticated }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, f.backend.Refreshes(), "no independent retries")
}

func TestStartTwiceAndStop(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap()
	s := f.scheduler(t, time.Hour)

	s.Stop() // before Start: no-op

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	s.Stop()
	s.Stop()
}

func TestStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Bootstrap()
	s := f.scheduler(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}
