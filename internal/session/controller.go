package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/role"
	"github.com/felixgeelhaar/campus/internal/token"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
)

// Backend is the subset of the API the controller calls.
type Backend interface {
	Login(ctx context.Context, username, password string) (*platform.LoginResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (*platform.RefreshResponse, error)
	SendForgotPasswordEmail(ctx context.Context, email string) error
	VerifyForgotPasswordCode(ctx context.Context, email, code string) error
	ResetForgottenPassword(ctx context.Context, email, code, newPassword string) error
	CurrentUser(ctx context.Context) (*platform.User, error)
}

// LogoutTimeout bounds the best-effort remote logout.
const LogoutTimeout = 5 * time.Second

// Controller is the single owner of session state.
type Controller struct {
	store     tokenstore.Store
	backend   Backend
	validator *token.Validator
	landing   Landing
	logger    *log.Logger

	// gate admits one auth mutation at a time; later callers wait.
	gate chan struct{}

	mu    sync.RWMutex
	state State
	flow  ForgotPasswordFlow
	nav   Navigator

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
	// notifyMu orders deliveries so listeners never see an older state
	// after a newer one.
	notifyMu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithNavigator sets the navigator used for redirects.
func WithNavigator(nav Navigator) Option {
	return func(c *Controller) {
		if nav != nil {
			c.nav = nav
		}
	}
}

// WithValidator replaces the token validator.
func WithValidator(v *token.Validator) Option {
	return func(c *Controller) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithLanding sets the role landing map.
func WithLanding(l Landing) Option {
	return func(c *Controller) {
		if len(l) > 0 {
			c.landing = l
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a Controller in the Bootstrapping phase. Call Bootstrap
// before reading state.
func New(store tokenstore.Store, backend Backend, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		backend:   backend,
		validator: token.NewValidator(),
		landing:   DefaultLanding(),
		nav:       nopNavigator{},
		gate:      make(chan struct{}, 1),
		state:     initialState(),
		subs:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger).WithComponent("session")
	c.flow = loadFlow(store)
	return c
}

// SetNavigator wires the navigator after construction.
func (c *Controller) SetNavigator(nav Navigator) {
	if nav == nil {
		nav = nopNavigator{}
	}
	c.mu.Lock()
	c.nav = nav
	c.mu.Unlock()
}

func (c *Controller) navigator() Navigator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nav
}

// Store returns the token store.
func (c *Controller) Store() tokenstore.Store {
	return c.store
}

// Validator returns the token validator.
func (c *Controller) Validator() *token.Validator {
	return c.validator
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Subscribe registers fn for every state change and returns a function
// that removes it. Listeners run on the goroutine that changed the state
// and must not call mutating Controller methods synchronously.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) setState(update func(*State)) {
	c.mu.Lock()
	update(&c.state)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	snapshot := c.Snapshot()
	c.subMu.Lock()
	listeners := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.subMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot.clone())
	}
}

func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCodeTimeout, "gave up waiting for another auth operation", ctx.Err())
	}
}

func (c *Controller) release() {
	<-c.gate
}

// Bootstrap derives the session from the token store. A valid access token
// yields Authenticated, anything else Anonymous.
func (c *Controller) Bootstrap() State {
	c.gate <- struct{}{}
	defer c.release()

	access, _ := c.store.Get(tokenstore.KeyAccessToken)
	claims, ok := token.Decode(access)
	if !ok || !c.validator.ValidClaims(claims) {
		c.logger.Debug("no valid access token at startup", "token", token.Fingerprint(access))
		c.setState(func(s *State) { *s = anonymousState() })
		return c.Snapshot()
	}

	user, cached := LoadUser(c.store)
	if !cached {
		user = &User{
			ID:       claims.IdentityID(),
			Username: claims.Username,
			Email:    claims.Email,
			Role:     claims.Role,
		}
	}
	if !user.Role.Valid() {
		user.Role = claims.Role
	}
	if !user.Role.Valid() {
		user.Role = CachedRole(c.store)
	}

	c.logger.Info("session restored",
		"user", user.ID,
		"role", user.Role.String(),
		"token", token.Fingerprint(access),
		"expires_at", claims.ExpiresAt,
	)
	c.setState(func(s *State) {
		*s = State{
			User:            user,
			IsAuthenticated: true,
			Phase:           PhaseAuthenticated,
		}
	})
	return c.Snapshot()
}

// CheckAuthenticated recomputes authentication from the token store
// without touching session state.
func (c *Controller) CheckAuthenticated() bool {
	access, _ := c.store.Get(tokenstore.KeyAccessToken)
	return c.validator.IsValid(access)
}

// Login authenticates and, on success, persists the tokens, enters the
// Authenticated phase and navigates to the return path or the role's
// landing view. On failure the sanitized message is recorded in state and
// the error is returned.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		err := errors.NewValidationError("credentials", "username and password are required")
		c.setState(func(s *State) { s.Error = errors.MessageOf(err) })
		return err
	}

	c.setState(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})

	resp, err := c.backend.Login(ctx, username, password)
	if err == nil && (resp == nil || resp.AccessToken == "") {
		err = errors.New(errors.ErrCodeDecodeResponse, "login response carried no access token")
	}
	if err != nil {
		if platform.IsUnauthorized(err) {
			err = errors.Wrap(errors.ErrCodeInvalidCredentials, errors.MessageOf(err), err)
		}
		return c.fail("login failed", err)
	}

	claims, ok := token.Decode(resp.AccessToken)
	if !ok || !c.validator.ValidClaims(claims) {
		return c.fail("login failed", errors.New(errors.ErrCodeDecodeResponse, "received an invalid access token"))
	}

	user := userFromLogin(resp.User, claims)
	c.store.Set(tokenstore.KeyAccessToken, resp.AccessToken)
	if resp.RefreshToken != "" {
		c.store.Set(tokenstore.KeyRefreshToken, resp.RefreshToken)
	}
	SaveUser(c.store, user)

	c.logger.Info("login succeeded",
		"user", user.ID,
		"role", user.Role.String(),
		"token", token.Fingerprint(resp.AccessToken),
	)
	c.setState(func(s *State) {
		*s = State{
			User:            user,
			IsAuthenticated: true,
			Phase:           PhaseAuthenticated,
		}
	})

	nav := c.navigator()
	target := nav.Current().From
	if target == "" || target == LoginPath {
		target = c.landing.For(user.Role)
	}
	nav.Navigate(Location{Path: target})
	return nil
}

// userFromLogin prefers identity from the new token's claims and fills
// gaps from the user record in the response.
func userFromLogin(pu *platform.User, claims *token.Claims) *User {
	u := &User{
		ID:       claims.IdentityID(),
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
	}
	if pu == nil {
		return u
	}
	if u.ID == "" {
		u.ID = firstNonEmpty(pu.EmployeeID, pu.ID)
	}
	if u.Username == "" {
		u.Username = pu.Username
	}
	if u.Email == "" {
		u.Email = pu.Email
	}
	u.FullName = pu.FullName
	if !u.Role.Valid() {
		u.Role = role.Parse(pu.Role)
	}
	return u
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Controller) fail(msg string, err error) error {
	c.logger.WithError(err).Warn(msg)
	c.setState(func(s *State) {
		s.IsLoading = false
		s.Error = FriendlyMessage(err)
	})
	return err
}

// Logout ends the session. The remote call is best-effort and bounded by
// LogoutTimeout; local state is cleared whatever its outcome, so Logout
// cannot fail.
func (c *Controller) Logout(ctx context.Context) {
	c.gate <- struct{}{}
	defer c.release()

	c.setState(func(s *State) { s.IsLoading = true })

	if access, ok := c.store.Get(tokenstore.KeyAccessToken); ok && access != "" {
		remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LogoutTimeout)
		if err := c.backend.Logout(remoteCtx); err != nil {
			c.logger.WithError(err).Warn("remote logout failed; clearing local session anyway")
		}
		cancel()
	}

	c.clearLocal()
	c.logger.Info("logged out")
	c.navigator().Navigate(Location{Path: LoginPath})
}

func (c *Controller) clearLocal() {
	c.store.ClearAll()
	c.mu.Lock()
	c.flow = newFlow()
	c.mu.Unlock()
	c.setState(func(s *State) { *s = anonymousState() })
}

// Refresh exchanges the refresh token for a new access token. It returns
// true when the session was extended. A missing refresh token or a
// rejection by the backend ends the session; transport failures leave it
// untouched so the next scheduled check can try again.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.release()

	refresh, ok := c.store.Get(tokenstore.KeyRefreshToken)
	if !ok || refresh == "" {
		c.endSession("no refresh token")
		return false, errors.New(errors.ErrCodeNoRefreshToken, "no refresh token stored").
			WithSuggestion("Run 'campus auth login' to sign in again")
	}

	c.setState(func(s *State) { s.IsLoading = true })

	resp, err := c.backend.Refresh(ctx, refresh)
	if err == nil && resp == nil {
		err = errors.New(errors.ErrCodeDecodeResponse, "refresh response was empty")
	}
	if err != nil {
		if transient(err) {
			c.logger.WithError(err).Warn("token refresh failed; keeping session")
			c.setState(func(s *State) { s.IsLoading = false })
			return false, err
		}
		c.endSession("refresh rejected")
		return false, errors.Wrap(errors.ErrCodeRefreshFailed, "session could not be refreshed", err)
	}

	claims, ok := token.Decode(resp.AccessToken)
	if !ok || !c.validator.ValidClaims(claims) {
		c.endSession("refresh returned an invalid token")
		return false, errors.New(errors.ErrCodeRefreshFailed, "refresh returned an invalid access token")
	}

	c.store.Set(tokenstore.KeyAccessToken, resp.AccessToken)
	if resp.RefreshToken != "" {
		c.store.Set(tokenstore.KeyRefreshToken, resp.RefreshToken)
	}

	c.logger.Debug("access token refreshed",
		"token", token.Fingerprint(resp.AccessToken),
		"expires_at", claims.ExpiresAt,
	)
	c.setState(func(s *State) {
		s.IsLoading = false
		s.Error = ""
		s.IsAuthenticated = true
		s.Phase = PhaseAuthenticated
		if s.User == nil {
			s.User = &User{
				ID:       claims.IdentityID(),
				Username: claims.Username,
				Email:    claims.Email,
				Role:     claims.Role,
			}
		}
	})
	return true, nil
}

func transient(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeNetwork, errors.ErrCodeTimeout,
		errors.ErrCodeServerError, errors.ErrCodeServiceUnavailable:
		return true
	}
	return false
}

// endSession clears local state without navigating; route evaluation sends
// the user to login and keeps the path they were on.
func (c *Controller) endSession(reason string) {
	c.logger.Info("session ended", "reason", reason)
	c.clearLocal()
}

// HandleUnauthorized is the global 401 hook: it clears the token store,
// resets the session and navigates to login, remembering where the user
// was. It does not wait for in-flight auth operations.
func (c *Controller) HandleUnauthorized() {
	c.logger.Info("session rejected by backend")
	nav := c.navigator()
	from := nav.Current().Path
	c.clearLocal()
	if from == LoginPath || from == ForgotPasswordPath || from == UnauthorizedPath {
		from = ""
	}
	nav.Navigate(Location{Path: LoginPath, From: from})
}

// UpdateProfile replaces the cached identity of an authenticated session.
func (c *Controller) UpdateProfile(user User) error {
	snapshot := c.Snapshot()
	if !snapshot.IsAuthenticated {
		return errors.NewNotAuthenticatedError()
	}
	if !user.Role.Valid() {
		user.Role = snapshot.Role()
	}
	SaveUser(c.store, &user)
	c.setState(func(s *State) { s.User = &user })
	return nil
}

// SyncProfile reloads the identity from the backend.
func (c *Controller) SyncProfile(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if !c.Snapshot().IsAuthenticated {
		return errors.NewNotAuthenticatedError()
	}
	pu, err := c.backend.CurrentUser(ctx)
	if err != nil {
		if platform.IsUnauthorized(err) {
			return errors.Wrap(errors.ErrCodeSessionExpired, "session expired", err)
		}
		return err
	}
	return c.UpdateProfile(User{
		ID:       firstNonEmpty(pu.EmployeeID, pu.ID),
		Username: pu.Username,
		Email:    pu.Email,
		FullName: pu.FullName,
		Role:     role.Parse(pu.Role),
	})
}
