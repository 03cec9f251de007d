package session

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/campus/internal/platform"
)

type recordingNavigator struct {
	mu      sync.Mutex
	current Location
	visits  []Location
}

func (n *recordingNavigator) Current() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *recordingNavigator) Navigate(loc Location) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = loc
	n.visits = append(n.visits, loc)
}

func (n *recordingNavigator) Visits() []Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Location(nil), n.visits...)
}

// fakeBackend answers from configurable fields and counts calls.
type fakeBackend struct {
	mu sync.Mutex

	loginResp  *platform.LoginResponse
	loginErr   error
	logoutErr  error
	refreshRes *platform.RefreshResponse
	refreshErr error
	emailErr   error
	verifyErr  error
	resetErr   error
	me         *platform.User
	meErr      error

	// loginGate, when set, blocks Login until it is closed.
	loginGate chan struct{}

	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Login(ctx context.Context, _, _ string) (*platform.LoginResponse, error) {
	f.record("login")
	if f.loginGate != nil {
		select {
		case <-f.loginGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Logout(context.Context) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeBackend) Refresh(context.Context, string) (*platform.RefreshResponse, error) {
	f.record("refresh")
	return f.refreshRes, f.refreshErr
}

func (f *fakeBackend) SendForgotPasswordEmail(context.Context, string) error {
	f.record("email")
	return f.emailErr
}

func (f *fakeBackend) VerifyForgotPasswordCode(context.Context, string, string) error {
	f.record("verify")
	return f.verifyErr
}

func (f *fakeBackend) ResetForgottenPassword(context.Context, string, string, string) error {
	f.record("reset")
	return f.resetErr
}

func (f *fakeBackend) CurrentUser(context.Context) (*platform.User, error) {
	f.record("me")
	return f.me, f.meErr
}
