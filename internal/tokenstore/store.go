// Package tokenstore persists credentials and the cached identity between
// runs of the client.
//
// Stores are best-effort by contract: no method returns an error. Failures
// are logged and reads degrade to "absent", which every caller treats as
// "not authenticated".
package tokenstore

import (
	"strings"
)

// Persisted keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyUserRole     = "user_role"
)

// Namespace prefixes auxiliary auth keys (for example the email of an
// unfinished forgot-password flow). ClearAll removes them too.
const Namespace = "auth."

// AuthKeys are removed by ClearAll in addition to namespaced keys.
var AuthKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyUserRole}

// Store defines the interface for credential persistence.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value and true, or "" and false when the key is
	// missing or the backing storage cannot be read.
	Get(key string) (string, bool)

	// Set stores value under key. Failures are logged, never returned.
	Set(key, value string)

	// Remove deletes key. Removing a missing key is a no-op.
	Remove(key string)

	// ClearAll removes every auth key. After it returns, Get reports
	// every auth key as absent.
	ClearAll()

	// Name identifies the backend in status output.
	Name() string
}

// IsAuthKey reports whether ClearAll is responsible for key.
func IsAuthKey(key string) bool {
	if strings.HasPrefix(key, Namespace) {
		return true
	}
	for _, k := range AuthKeys {
		if k == key {
			return true
		}
	}
	return false
}

// AccessToken satisfies platform.TokenSource for any Store.
type AccessToken struct {
	Store Store
}

// Token returns the stored access token, or "".
func (a AccessToken) Token() string {
	v, _ := a.Store.Get(KeyAccessToken)
	return v
}
