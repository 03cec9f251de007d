package session

import (
	"strings"

	"github.com/felixgeelhaar/campus/internal/errors"
)

// User-facing messages.
const (
	MsgInvalidCredentials = "Invalid username or password. Please try again."
	MsgNetwork            = "Network error. Please check your connection and try again."
	MsgServerError        = "Server error. Please try again later."
	MsgServiceUnavailable = "Service is temporarily unavailable. Please try again later."
)

// FriendlyMessage turns an operation error into the text shown to the user.
// Known failure classes map to fixed messages; anything else falls back to
// the backend's own message.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidCredentials:
		return MsgInvalidCredentials
	case errors.ErrCodeNetwork, errors.ErrCodeTimeout:
		return MsgNetwork
	case errors.ErrCodeServiceUnavailable:
		return MsgServiceUnavailable
	case errors.ErrCodeServerError:
		return MsgServerError
	}

	msg := errors.MessageOf(err)
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "invalid credentials", "invalid username", "incorrect password", "wrong password", "invalid_credentials"):
		return MsgInvalidCredentials
	case containsAny(lower, "network", "timeout", "timed out", "connection refused"):
		return MsgNetwork
	case containsAny(lower, "service unavailable", "503", "502", "504"):
		return MsgServiceUnavailable
	case containsAny(lower, "server error", "internal server", "500"):
		return MsgServerError
	}
	return msg
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
