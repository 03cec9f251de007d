package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/config"
	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/refresh"
	"github.com/felixgeelhaar/campus/internal/router"
	"github.com/felixgeelhaar/campus/internal/session"
	"github.com/felixgeelhaar/campus/internal/token"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
	"github.com/felixgeelhaar/campus/internal/version"
)

// app is the wired client of one invocation: configuration, logger, token
// store, API client, session controller and router.
type app struct {
	ctx    *CommandContext
	cfg    *config.Config
	home   string
	logger *log.Logger
	logOut log.Output

	store     tokenstore.Store
	validator *token.Validator
	client    *platform.Client
	session   *session.Controller
	router    *router.Router
}

// newApp wires the client and bootstraps the session from the token store.
// The router starts at start, so its first evaluation already reflects
// the restored session.
func newApp(cmd *cobra.Command, start string) (*app, error) {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, err := cctx.LoadConfig()
	if err != nil {
		return nil, err
	}
	home, err := cctx.HomeDir()
	if err != nil {
		return nil, err
	}

	a := &app{ctx: cctx, cfg: cfg, home: home}
	if err := a.setupLogger(); err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case config.StoreMemory:
		a.store = tokenstore.NewMemoryStore()
	default:
		a.store = tokenstore.NewFileStore(filepath.Join(home, tokenstore.DefaultFileName), a.logger)
	}

	a.validator = token.NewValidator(token.WithExpiryMargin(cfg.Token.ExpiryMargin))
	a.client = platform.NewClient(cfg.API.BaseURL,
		platform.WithTimeout(cfg.API.Timeout),
		platform.WithTokenSource(tokenstore.AccessToken{Store: a.store}),
		platform.WithLogger(a.logger),
	)
	a.session = session.New(a.store, a.client,
		session.WithValidator(a.validator),
		session.WithLanding(cfg.Landing()),
		session.WithLogger(a.logger),
	)
	a.client.SetUnauthorizedHandler(a.session.HandleUnauthorized)
	a.session.Bootstrap()

	table := router.DefaultTable()
	if err := table.Restrict(cfg.Routes.Access); err != nil {
		a.Close()
		return nil, err
	}
	a.router = router.New(table, a.session, start, a.logger)
	a.session.SetNavigator(a.router)

	a.logger.Debug("client ready",
		"api", cfg.API.BaseURL,
		"store", a.store.Name(),
		"phase", a.session.Snapshot().Phase.String(),
	)
	return a, nil
}

// setupLogger sends records to the log file so they never mix with
// command output or the portal screen.
func (a *app) setupLogger() error {
	level, err := log.ParseLevel(a.cfg.Logging.Level)
	if err != nil {
		return err
	}
	out, err := log.OutputFile(a.cfg.LogFile(a.home))
	if err != nil {
		return err
	}
	a.logOut = out
	a.logger = log.New(log.Config{
		Level:          level,
		Format:         log.ParseFormat(a.cfg.Logging.Format),
		Output:         out,
		ServiceName:    "campus",
		ServiceVersion: version.GetInfo().Version,
	})
	return nil
}

// scheduler builds the background refresher for long-running commands.
func (a *app) scheduler() (*refresh.Scheduler, error) {
	return refresh.NewScheduler(refresh.Config{
		Session:   a.session,
		Tokens:    tokenstore.AccessToken{Store: a.store},
		Validator: a.validator,
		Interval:  a.cfg.Refresh.Interval,
		Lookahead: a.cfg.Refresh.Lookahead,
		Logger:    a.logger,
	})
}

// Close detaches the router and closes the log file.
func (a *app) Close() {
	if a.router != nil {
		a.router.Close()
	}
	_ = a.logOut.Close()
}
