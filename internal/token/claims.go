// Package token inspects access tokens on the client side.
//
// Nothing here verifies signatures: the backend does that on every call.
// The client only needs the claims to decide whether a token is worth
// sending and who the session belongs to. Every function fails closed:
// malformed input yields nil/false, never an error or a panic.
package token

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/campus/internal/role"
)

// Claims is the validated subset of an access-token payload.
type Claims struct {
	Subject    string
	UserID     string
	EmployeeID string
	Username   string
	Email      string
	Role       role.Role
	// RawRole is the role claim exactly as issued, kept for diagnostics.
	RawRole   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (c *Claims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// IdentityID returns the most specific identifier present: employee id,
// then user id, then subject.
func (c *Claims) IdentityID() string {
	switch {
	case c.EmployeeID != "":
		return c.EmployeeID
	case c.UserID != "":
		return c.UserID
	default:
		return c.Subject
	}
}

// payload mirrors the wire claims. The backend has issued both snake_case
// and camelCase ids over time, and ids as numbers or strings.
type payload struct {
	Subject       flexString       `json:"sub"`
	ExpiresAt     *jwt.NumericDate `json:"exp"`
	IssuedAt      *jwt.NumericDate `json:"iat"`
	UserID        flexString `json:"user_id"`
	UserIDCamel   flexString `json:"userId"`
	EmployeeID    flexString `json:"employee_id"`
	EmployeeCamel flexString `json:"employeeId"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

var parser = jwt.NewParser()

// Decode parses the payload of a three-segment token without verifying its
// signature. Only the middle segment is read; the header may carry any alg
// or none. It returns nil, false for anything that is not a well-formed
// token with a JSON object payload.
func Decode(tokenString string) (claims *Claims, ok bool) {
	if tokenString == "" {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			claims, ok = nil, false
		}
	}()

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, false
	}
	raw, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	p := &payload{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, false
	}

	claims = &Claims{
		Subject:    string(p.Subject),
		UserID:     firstNonEmpty(p.UserID, p.UserIDCamel),
		EmployeeID: firstNonEmpty(p.EmployeeID, p.EmployeeCamel),
		Username:   p.Username,
		Email:      p.Email,
		Role:       role.Parse(p.Role),
		RawRole:    p.Role,
	}
	if p.ExpiresAt != nil {
		claims.ExpiresAt = p.ExpiresAt.Time
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	return claims, true
}

// Fingerprint returns a short, irreversible identifier for a token so log
// lines can correlate tokens without exposing them.
func Fingerprint(tokenString string) string {
	if tokenString == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:6])
}
