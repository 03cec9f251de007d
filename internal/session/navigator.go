package session

import (
	"github.com/felixgeelhaar/campus/internal/role"
)

// Well-known view paths.
const (
	LoginPath          = "/auth/login"
	ForgotPasswordPath = "/auth/forgot-password"
	HomePath           = "/home"
	UnauthorizedPath   = "/unauthorized"
)

// Location is a navigable position in the portal. From carries the path the
// user originally asked for when they were sent to the login view.
type Location struct {
	Path string
	From string
}

// Navigator moves the portal between views.
type Navigator interface {
	Current() Location
	Navigate(loc Location)
}

type nopNavigator struct{}

func (nopNavigator) Current() Location { return Location{} }
func (nopNavigator) Navigate(Location) {}

// Landing maps a role to the view shown after login.
type Landing map[role.Role]string

// DefaultLanding sends every role home.
func DefaultLanding() Landing {
	l := make(Landing, len(role.All))
	for _, r := range role.All {
		l[r] = HomePath
	}
	return l
}

// For returns the landing path for r, falling back to HomePath.
func (l Landing) For(r role.Role) string {
	if p, ok := l[r]; ok && p != "" {
		return p
	}
	return HomePath
}
