package token

import (
	"time"

	"github.com/felixgeelhaar/campus/internal/role"
)

// Validator decides token validity against a clock.
type Validator struct {
	now    func() time.Time
	margin time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithExpiryMargin treats tokens as expired this long before their exp
// claim, absorbing clock skew between client and backend. Zero (the
// default) compares exp against the current second exactly.
func WithExpiryMargin(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.margin = d
		}
	}
}

// NewValidator creates a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Now returns the validator's current time.
func (v *Validator) Now() time.Time {
	return v.now()
}

// IsValid reports whether the token decodes, carries exp, and exp (in whole
// seconds) is strictly after now.
func (v *Validator) IsValid(tokenString string) bool {
	claims, ok := Decode(tokenString)
	if !ok {
		return false
	}
	return v.ValidClaims(claims)
}

// ValidClaims is IsValid for already-decoded claims.
func (v *Validator) ValidClaims(claims *Claims) bool {
	if claims == nil || !claims.HasExpiry() {
		return false
	}
	return claims.ExpiresAt.Unix() > v.now().Add(v.margin).Unix()
}

// Remaining returns how long the token stays valid. ok is false when the
// token is invalid.
func (v *Validator) Remaining(tokenString string) (time.Duration, bool) {
	claims, ok := Decode(tokenString)
	if !ok || !v.ValidClaims(claims) {
		return 0, false
	}
	return claims.ExpiresAt.Sub(v.now()), true
}

// ExpiresWithin reports whether the token is invalid or will expire within d.
func (v *Validator) ExpiresWithin(tokenString string, d time.Duration) bool {
	remaining, ok := v.Remaining(tokenString)
	if !ok {
		return true
	}
	return remaining < d
}

var defaultValidator = NewValidator()

// IsValid uses the wall clock and no margin.
func IsValid(tokenString string) bool {
	return defaultValidator.IsValid(tokenString)
}

// Role returns the normalized role claim, or role.Unknown.
func Role(tokenString string) role.Role {
	claims, ok := Decode(tokenString)
	if !ok {
		return role.Unknown
	}
	return claims.Role
}

// UserID returns the user id claim.
func UserID(tokenString string) (string, bool) {
	claims, ok := Decode(tokenString)
	if !ok || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}

// EmployeeID returns the employee id claim.
func EmployeeID(tokenString string) (string, bool) {
	claims, ok := Decode(tokenString)
	if !ok || claims.EmployeeID == "" {
		return "", false
	}
	return claims.EmployeeID, true
}
