// Package role defines the closed set of staff roles recognised by the
// platform and the single place where role strings are normalized.
package role

import (
	"sort"
	"strings"
)

// Role is a staff role carried in access-token claims.
type Role int

const (
	// Unknown is the zero value; it never passes an authorization check.
	Unknown Role = iota
	Teacher
	LearningAdvisor
	Manager
)

// All lists every assignable role in display order.
var All = []Role{Teacher, LearningAdvisor, Manager}

// String returns the canonical name as issued by the backend.
func (r Role) String() string {
	switch r {
	case Teacher:
		return "Teacher"
	case LearningAdvisor:
		return "Learning Advisor"
	case Manager:
		return "Manager"
	default:
		return "Unknown"
	}
}

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == Teacher || r == LearningAdvisor || r == Manager
}

// Slug is the lowercase, separator-free key used in config files.
func (r Role) Slug() string {
	return normalize(r.String())
}

// Parse maps any spelling the backend or older clients have used
// ("Learning Advisor", "learning_advisor", "LEARNINGADVISOR", "teacher")
// onto a Role. Unrecognised input yields Unknown.
func Parse(s string) Role {
	switch normalize(s) {
	case "teacher":
		return Teacher
	case "learningadvisor", "advisor":
		return LearningAdvisor
	case "manager":
		return Manager
	default:
		return Unknown
	}
}

func normalize(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch c {
		case ' ', '_', '-', '.':
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// MarshalText encodes the canonical name.
func (r Role) MarshalText() ([]byte, error) {
	if r == Unknown {
		return []byte(""), nil
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts any spelling Parse understands.
func (r *Role) UnmarshalText(text []byte) error {
	*r = Parse(string(text))
	return nil
}

// Set is an allow-list of roles.
type Set map[Role]struct{}

// NewSet builds a Set, ignoring Unknown.
func NewSet(roles ...Role) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		if r.Valid() {
			s[r] = struct{}{}
		}
	}
	return s
}

// AnyRole allows every assignable role.
func AnyRole() Set {
	return NewSet(All...)
}

// Contains reports whether r is allowed.
func (s Set) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the members in display order.
func (s Set) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// String joins the member names with commas.
func (s Set) String() string {
	names := make([]string, 0, len(s))
	for _, r := range s.Roles() {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}
