// Package router decides which portal view may render for the current
// session and moves the user to login or the unauthorized view when it
// may not.
package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/campus/internal/role"
	"github.com/felixgeelhaar/campus/internal/session"
)

// Route is a navigable view.
type Route struct {
	Path  string
	Title string
	// AllowedRoles lists the roles that may open the view. Empty admits nobody.
	AllowedRoles role.Set
	// Public views render without a session.
	Public bool
}

// NotFoundPath is the pseudo path of the not-found view.
const NotFoundPath = "/not-found"

// Table is the set of known routes.
type Table struct {
	routes map[string]Route
	order  []string
}

// NewTable builds a table from routes. Later duplicates replace earlier ones.
func NewTable(routes ...Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.Add(r)
	}
	return t
}

// Add registers or replaces a route.
func (t *Table) Add(r Route) {
	r.Path = cleanPath(r.Path)
	if _, exists := t.routes[r.Path]; !exists {
		t.order = append(t.order, r.Path)
	}
	t.routes[r.Path] = r
}

// Lookup returns the route registered at path.
func (t *Table) Lookup(path string) (Route, bool) {
	r, ok := t.routes[cleanPath(path)]
	return r, ok
}

// Resolve returns the route for path, or the not-found route.
func (t *Table) Resolve(path string) Route {
	if r, ok := t.Lookup(path); ok {
		return r
	}
	return Route{Path: NotFoundPath, Title: "Not found", AllowedRoles: role.AnyRole()}
}

// Routes returns routes in registration order.
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.routes[p])
	}
	return out
}

// Navigable returns the non-public routes visible to r.
func (t *Table) Navigable(r role.Role) []Route {
	var out []Route
	for _, route := range t.Routes() {
		if route.Public {
			continue
		}
		if !route.AllowedRoles.Contains(r) {
			continue
		}
		out = append(out, route)
	}
	return out
}

// Restrict replaces the allow-lists of existing routes. Keys are paths,
// values role names in any spelling role.Parse accepts.
func (t *Table) Restrict(access map[string][]string) error {
	paths := make([]string, 0, len(access))
	for p := range access {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		route, ok := t.Lookup(p)
		if !ok {
			return fmt.Errorf("unknown route %q", p)
		}
		if route.Public {
			return fmt.Errorf("route %q is public and cannot be restricted", p)
		}
		var roles []role.Role
		for _, name := range access[p] {
			r := role.Parse(name)
			if !r.Valid() {
				return fmt.Errorf("route %q: unknown role %q", p, name)
			}
			roles = append(roles, r)
		}
		route.AllowedRoles = role.NewSet(roles...)
		t.Add(route)
	}
	return nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// DefaultTable returns the portal's views.
func DefaultTable() *Table {
	all := role.AnyRole()
	return NewTable(
		Route{Path: session.LoginPath, Title: "Sign in", Public: true},
		Route{Path: session.ForgotPasswordPath, Title: "Forgot password", Public: true},
		Route{Path: session.UnauthorizedPath, Title: "Unauthorized", Public: true},
		Route{Path: session.HomePath, Title: "Home", AllowedRoles: all},
		Route{Path: "/classes", Title: "Classes", AllowedRoles: all},
		Route{Path: "/contracts", Title: "Contracts", AllowedRoles: role.NewSet(role.LearningAdvisor, role.Manager)},
		Route{Path: "/attendance", Title: "Attendance", AllowedRoles: role.NewSet(role.Teacher, role.Manager)},
		Route{Path: "/scores", Title: "Scores", AllowedRoles: all},
		Route{Path: "/timekeeping", Title: "Timekeeping", AllowedRoles: all},
		Route{Path: "/colleagues", Title: "Colleagues", AllowedRoles: role.NewSet(role.Manager)},
		Route{Path: "/issues", Title: "Issues", AllowedRoles: all},
		Route{Path: "/materials", Title: "Materials", AllowedRoles: role.NewSet(role.Teacher, role.Manager)},
	)
}
