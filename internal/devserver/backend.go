// Package devserver is a local stand-in for the English-center backend.
//
// It implements the endpoints the client calls with in-memory state: seeded
// accounts with bcrypt hashes, HS256 access tokens, opaque refresh tokens and
// emailed verification codes (logged instead of sent). Tests run it behind
// httptest; `campus dev-server` runs it on a port.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/metrics"
	"github.com/felixgeelhaar/campus/internal/platform"
)

// Options configures a Backend.
type Options struct {
	// Secret signs access tokens. A random secret is generated when empty.
	Secret []byte

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetCodeTTL    time.Duration

	// Users are seeded at startup. DefaultUsers is used when nil.
	Users []SeedUser

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	// Now replaces time.Now for token timestamps.
	Now func() time.Time

	Logger *log.Logger
}

// Backend serves the mock API.
type Backend struct {
	secret     []byte
	accessTTL  time.Duration
	now        func() time.Time
	logger     *log.Logger
	accounts   *accounts
	classes    []platform.Class
	refresh    *cache.Cache
	resetCodes *cache.Cache
	registry   *prometheus.Registry
	metrics    *metrics.Metrics

	mu       sync.Mutex
	failures map[string][]int
	calls    map[string]int
}

type resetState struct {
	code     string
	verified bool
}

// New creates a Backend with seeded accounts.
func New(opts Options) (*Backend, error) {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = 15 * time.Minute
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if opts.ResetCodeTTL <= 0 {
		opts.ResetCodeTTL = 10 * time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Users == nil {
		opts.Users = DefaultUsers()
	}
	if len(opts.Secret) == 0 {
		secret, err := newRefreshToken()
		if err != nil {
			return nil, err
		}
		opts.Secret = []byte(secret)
	}

	registry, m := metrics.NewRegistry()
	b := &Backend{
		secret:     opts.Secret,
		accessTTL:  opts.AccessTokenTTL,
		now:        opts.Now,
		logger:     log.OrDefault(opts.Logger).WithComponent("devserver"),
		accounts:   newAccounts(opts.BcryptCost),
		refresh:    cache.New(opts.RefreshTokenTTL, 10*time.Minute),
		resetCodes: cache.New(opts.ResetCodeTTL, 10*time.Minute),
		registry:   registry,
		metrics:    m,
		failures:   make(map[string][]int),
		calls:      make(map[string]int),
	}
	for _, u := range opts.Users {
		if err := b.accounts.add(u); err != nil {
			return nil, err
		}
	}
	b.classes = seedClasses(b.accounts)
	return b, nil
}

// Router returns the API handler.
func (b *Backend) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(b.metrics.Middleware)
	r.Use(chiMiddleware.Recoverer)
	r.Use(b.trackCalls)
	r.Use(b.injectFailures)

	r.Post(platform.PathLogin, b.handleLogin)
	r.Post(platform.PathRefresh, b.handleRefresh)
	r.With(b.authMiddleware).Post(platform.PathLogout, b.handleLogout)

	r.Route("/forgot-password", func(r chi.Router) {
		r.Post("/email", b.handleForgotPasswordEmail)
		r.Post("/verify", b.handleForgotPasswordVerify)
		r.Post("/reset", b.handleForgotPasswordReset)
	})

	r.With(b.authMiddleware).Get(platform.PathCurrentUser, b.handleGetMe)
	r.With(b.authMiddleware).Get(platform.PathClasses, b.handleListClasses)

	return r
}

// Registry returns the registry holding the server's metrics.
func (b *Backend) Registry() *prometheus.Registry {
	return b.registry
}

// FailNext makes the next request to path answer with status.
// Calls queue up: FailNext twice fails the next two requests.
func (b *Backend) FailNext(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = append(b.failures[path], status)
}

// Calls returns how many requests reached path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// IssueAccessToken signs a token for username with a custom lifetime.
func (b *Backend) IssueAccessToken(username string, ttl time.Duration) (string, bool) {
	acc, ok := b.accounts.lookup(username)
	if !ok {
		return "", false
	}
	tok, err := b.newAccessToken(acc, ttl)
	if err != nil {
		return "", false
	}
	return tok, true
}

// IssueRefreshToken stores and returns a refresh token for username.
func (b *Backend) IssueRefreshToken(username string) (string, bool) {
	acc, ok := b.accounts.lookup(username)
	if !ok {
		return "", false
	}
	tok, err := newRefreshToken()
	if err != nil {
		return "", false
	}
	b.refresh.SetDefault(hashToken(tok), acc.Username)
	return tok, true
}

// ResetCode returns the pending verification code for email.
func (b *Backend) ResetCode(email string) (string, bool) {
	v, ok := b.resetCodes.Get(normalizeEmail(email))
	if !ok {
		return "", false
	}
	return v.(*resetState).code, true
}

// SetAccessTokenTTL changes the lifetime of tokens issued from now on.
func (b *Backend) SetAccessTokenTTL(ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTTL = ttl
}

func (b *Backend) accessTokenTTL() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessTTL
}

func (b *Backend) trackCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.mu.Unlock()
		b.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get(platform.RequestIDHeader),
		)
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		queue := b.failures[r.URL.Path]
		var status int
		if len(queue) > 0 {
			status = queue[0]
			b.failures[r.URL.Path] = queue[1:]
		}
		b.mu.Unlock()

		if status != 0 {
			b.metrics.InjectedFailures.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
			writeError(w, status, "injected_failure", http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

func (b *Backend) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
			return
		}

		claims, err := b.parseAccessToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Token is invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *accessClaims {
	claims, _ := ctx.Value(claimsKey{}).(*accessClaims)
	return claims
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
