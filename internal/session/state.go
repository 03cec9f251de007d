// Package session owns the in-memory session of the client: who is signed
// in, whether an auth operation is in flight, and the last error shown to
// the user. The Controller is the only writer of that state and of the auth
// keys in the token store.
package session

import (
	"encoding/json"

	"github.com/felixgeelhaar/campus/internal/log"
	"github.com/felixgeelhaar/campus/internal/role"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
)

// Phase is the coarse lifecycle state of a session.
type Phase int

const (
	PhaseBootstrapping Phase = iota
	PhaseAnonymous
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// User is the identity of the signed-in staff member.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	FullName string    `json:"full_name,omitempty"`
	Role     role.Role `json:"role"`
}

// DisplayName prefers the full name.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// State is a snapshot of the session.
type State struct {
	User            *User
	IsLoading       bool
	Error           string
	IsAuthenticated bool
	Phase           Phase
}

// Role returns the user's role, or role.Unknown when signed out.
func (s State) Role() role.Role {
	if s.User == nil {
		return role.Unknown
	}
	return s.User.Role
}

func initialState() State {
	return State{IsLoading: true, Phase: PhaseBootstrapping}
}

func anonymousState() State {
	return State{Phase: PhaseAnonymous}
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// LoadUser reads the cached user record. A missing or unparsable record
// reads as absent.
func LoadUser(store tokenstore.Store) (*User, bool) {
	raw, ok := store.Get(tokenstore.KeyUser)
	if !ok || raw == "" {
		return nil, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.DefaultLogger().Debug("ignoring unparsable cached user", "error", err)
		return nil, false
	}
	if u.ID == "" && u.Username == "" {
		return nil, false
	}
	return &u, true
}

// SaveUser caches u and its role.
func SaveUser(store tokenstore.Store, u *User) {
	data, err := json.Marshal(u)
	if err != nil {
		log.DefaultLogger().Warn("failed to encode cached user", "error", err)
		return
	}
	store.Set(tokenstore.KeyUser, string(data))
	if u.Role.Valid() {
		store.Set(tokenstore.KeyUserRole, u.Role.String())
	}
}

// CachedRole returns the cached role string, normalized.
func CachedRole(store tokenstore.Store) role.Role {
	raw, _ := store.Get(tokenstore.KeyUserRole)
	return role.Parse(raw)
}
