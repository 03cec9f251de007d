// Package tokentest issues signed tokens for tests.
package tokentest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Key signs every test token.
var Key = []byte("campus-test-signing-key")

// Spec describes a token to issue. Zero fields are omitted from the payload.
type Spec struct {
	Subject    string
	UserID     any
	EmployeeID any
	Username   string
	Email      string
	Role       string
	ExpiresAt  time.Time
	Extra      map[string]any
}

// Issue returns an HS256 token for spec. It panics on signing failure,
// which cannot happen with an HMAC key.
func Issue(spec Spec) string {
	claims := jwt.MapClaims{}
	set := func(key string, v any) {
		switch val := v.(type) {
		case nil:
		case string:
			if val != "" {
				claims[key] = val
			}
		default:
			claims[key] = val
		}
	}
	set("sub", spec.Subject)
	set("user_id", spec.UserID)
	set("employee_id", spec.EmployeeID)
	set("username", spec.Username)
	set("email", spec.Email)
	set("role", spec.Role)
	if !spec.ExpiresAt.IsZero() {
		claims["exp"] = spec.ExpiresAt.Unix()
	}
	for k, v := range spec.Extra {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(Key)
	if err != nil {
		panic(err)
	}
	return signed
}

// Valid issues a token for role expiring after ttl.
func Valid(role string, ttl time.Duration) string {
	return Issue(Spec{
		Subject:   "U1",
		UserID:    "U1",
		Username:  "alice",
		Role:      role,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// Expired issues a token for role that expired an hour ago.
func Expired(role string) string {
	return Valid(role, -time.Hour)
}
