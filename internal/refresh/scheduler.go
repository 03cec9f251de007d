// Package refresh keeps the access token fresh while a session is
// authenticated.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/session"
	"github.com/felixgeelhaar/campus/internal/token"
)

// Defaults.
const (
	DefaultInterval  = 5 * time.Minute
	DefaultLookahead = 60 * time.Second
)

// Session is the part of the session controller the scheduler drives.
type Session interface {
	Snapshot() session.State
	Subscribe(fn func(session.State)) func()
	Refresh(ctx context.Context) (bool, error)
}

// TokenSource returns the current access token.
type TokenSource interface {
	Token() string
}

// Config holds configuration for the refresh scheduler.
type Config struct {
	Session   Session
	Tokens    TokenSource
	Validator *token.Validator
	Interval  time.Duration // How often to check while authenticated (default: 5m)
	Lookahead time.Duration // Refresh when the token expires within this window (default: 60s)
	Logger    *log.Logger
}

// Scheduler checks the access token on a fixed interval, and once
// immediately whenever the session becomes authenticated, asking the
// session to refresh when the token is invalid or about to expire. It is
// idle while the session is anonymous and never retries on its own: a
// failed refresh ends the session, which idles the scheduler.
type Scheduler struct {
	session   Session
	tokens    TokenSource
	validator *token.Validator
	interval  time.Duration
	lookahead time.Duration
	logger    *log.Logger

	changes chan session.State

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	done     chan struct{}
	checks   int
}

// NewScheduler creates a new refresh scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Lookahead < 0 {
		cfg.Lookahead = 0
	} else if cfg.Lookahead == 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.Validator == nil {
		cfg.Validator = token.NewValidator()
	}

	return &Scheduler{
		session:   cfg.Session,
		tokens:    cfg.Tokens,
		validator: cfg.Validator,
		interval:  cfg.Interval,
		lookahead: cfg.Lookahead,
		logger:    log.OrDefault(cfg.Logger).WithComponent("refresh"),
		changes:   make(chan session.State, 1),
	}, nil
}

// Start launches the scheduler goroutine. Starting twice is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("refresh scheduler already started")
	}
	s.started = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	unsubscribe := s.session.Subscribe(s.push)
	go func() {
		defer close(s.done)
		defer unsubscribe()
		s.run(ctx)
	}()
	return nil
}

// Stop cancels the scheduler and waits for it to exit. It is safe to call
// more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	close(stop)
	<-done
}

// Checks returns how many token checks have run.
func (s *Scheduler) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// push keeps only the latest state; it never blocks the notifier.
func (s *Scheduler) push(st session.State) {
	for {
		select {
		case s.changes <- st:
			return
		default:
		}
		select {
		case <-s.changes:
		default:
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Debug("refresh scheduler started", "interval", s.interval, "lookahead", s.lookahead)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	activate := func() {
		if ticker != nil {
			return
		}
		ticker = time.NewTicker(s.interval)
		tick = ticker.C
		s.check(ctx)
	}
	deactivate := func() {
		if ticker == nil {
			return
		}
		ticker.Stop()
		ticker, tick = nil, nil
		s.logger.Debug("refresh scheduler idle")
	}
	defer deactivate()

	if s.session.Snapshot().IsAuthenticated {
		activate()
	}

	for {
		select {
		case <-tick:
			s.check(ctx)
		case st := <-s.changes:
			if st.IsAuthenticated {
				activate()
			} else if !st.IsLoading {
				deactivate()
			}
		case <-s.stopFor():
			s.logger.Debug("stopping refresh scheduler")
			return
		case <-ctx.Done():
			s.logger.Debug("context cancelled, stopping refresh scheduler")
			return
		}
	}
}

func (s *Scheduler) stopFor() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.stopChan
}

// check refreshes when the current token is invalid or expires within the
// lookahead window.
func (s *Scheduler) check(ctx context.Context) {
	s.mu.Lock()
	s.checks++
	s.mu.Unlock()

	if !s.session.Snapshot().IsAuthenticated {
		return
	}
	access := s.tokens.Token()
	if !s.validator.ExpiresWithin(access, s.lookahead) {
		return
	}

	s.logger.Info("access token expiring, refreshing", "token", token.Fingerprint(access))
	ok, err := s.session.Refresh(ctx)
	switch {
	case err != nil:
		s.logger.WithError(err).Warn("token refresh failed")
	case ok:
		s.logger.Debug("token refreshed")
	}
}
