package router

import (
	"github.com/felixgeelhaar/campus/internal/session"
)

// Outcome is what the authorizer decided for a route.
type Outcome int

const (
	// Loading shows a progress indicator and navigates nowhere.
	Loading Outcome = iota
	Render
	RedirectLogin
	RedirectUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

// Decision is the authorizer's verdict. From is set for RedirectLogin.
type Decision struct {
	Outcome Outcome
	From    string
}

// Authorize gates route for the given session state. It never fails.
func Authorize(state session.State, loc session.Location, route Route) Decision {
	switch {
	case route.Public:
		return Decision{Outcome: Render}
	case state.IsLoading:
		return Decision{Outcome: Loading}
	case !state.IsAuthenticated:
		return Decision{Outcome: RedirectLogin, From: returnPath(loc)}
	case !route.AllowedRoles.Contains(state.Role()):
		return Decision{Outcome: RedirectUnauthorized}
	default:
		return Decision{Outcome: Render}
	}
}

func returnPath(loc session.Location) string {
	p := cleanPath(loc.Path)
	if p == "/" || p == session.LoginPath {
		return loc.From
	}
	return p
}
