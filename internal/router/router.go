package router

import (
	"sync"

	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/session"
)

// StateSource is the session the router follows.
type StateSource interface {
	Snapshot() session.State
	Subscribe(fn func(session.State)) func()
}

// View is what the portal shows: the resolved location, its route and the
// authorizer's verdict.
type View struct {
	Location session.Location
	Route    Route
	Decision Decision
	State    session.State
}

// Router holds the current location and re-evaluates it whenever the
// location or the session changes.
type Router struct {
	table  *Table
	source StateSource
	logger *log.Logger

	mu   sync.Mutex
	view View

	listenerMu sync.Mutex
	listeners  map[int]func(View)
	nextID     int

	unsubscribe func()
}

// New creates a Router at start and subscribes it to source.
func New(table *Table, source StateSource, start string, logger *log.Logger) *Router {
	if table == nil {
		table = DefaultTable()
	}
	if start == "" {
		start = session.HomePath
	}
	r := &Router{
		table:     table,
		source:    source,
		logger:    log.OrDefault(logger).WithComponent("router"),
		listeners: make(map[int]func(View)),
	}
	r.mu.Lock()
	r.view = r.evaluate(session.Location{Path: start}, source.Snapshot())
	r.mu.Unlock()
	r.unsubscribe = source.Subscribe(r.onSession)
	return r
}

// Close detaches the router from the session.
func (r *Router) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// Table returns the route table.
func (r *Router) Table() *Table {
	return r.table
}

// Current returns the current location.
func (r *Router) Current() session.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view.Location
}

// View returns the current view.
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Navigate moves to loc and applies the authorizer's redirects.
func (r *Router) Navigate(loc session.Location) {
	r.update(loc, r.source.Snapshot())
}

// Open navigates to path.
func (r *Router) Open(path string) {
	r.Navigate(session.Location{Path: path})
}

func (r *Router) onSession(state session.State) {
	r.update(r.Current(), state)
}

func (r *Router) update(loc session.Location, state session.State) {
	r.mu.Lock()
	prev := r.view
	r.view = r.evaluate(loc, state)
	next := r.view
	r.mu.Unlock()

	if next.Location != prev.Location || next.Decision != prev.Decision {
		r.logger.Debug("view changed",
			"path", next.Location.Path,
			"from", next.Location.From,
			"outcome", next.Decision.Outcome.String(),
		)
	}
	r.notify(next)
}

// evaluate resolves loc, following at most one redirect. Redirect targets
// are public routes, so the second pass always renders.
func (r *Router) evaluate(loc session.Location, state session.State) View {
	if loc.Path == "" || loc.Path == "/" {
		loc.Path = session.HomePath
	}
	loc.Path = cleanPath(loc.Path)
	route := r.table.Resolve(loc.Path)
	decision := Authorize(state, loc, route)

	switch decision.Outcome {
	case RedirectLogin:
		loc = session.Location{Path: session.LoginPath, From: decision.From}
		route = r.table.Resolve(loc.Path)
	case RedirectUnauthorized:
		loc = session.Location{Path: session.UnauthorizedPath, From: loc.Path}
		route = r.table.Resolve(loc.Path)
	}

	return View{
		Location: loc,
		Route:    route,
		Decision: decision,
		State:    state,
	}
}

// OnChange registers fn for every evaluation and returns a function that
// removes it.
func (r *Router) OnChange(fn func(View)) func() {
	r.listenerMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.listenerMu.Unlock()

	return func() {
		r.listenerMu.Lock()
		delete(r.listeners, id)
		r.listenerMu.Unlock()
	}
}

func (r *Router) notify(v View) {
	r.listenerMu.Lock()
	fns := make([]func(View), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.listenerMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
