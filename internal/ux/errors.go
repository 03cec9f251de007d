package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/campus/internal/errors"
)

// ErrorWithSuggestion wraps an error with a recovery suggestion
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that reach the user without one.
// Coded errors that already carry suggestions pass through untouched.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var campusErr *errors.CampusError
	if stderrors.As(err, &campusErr) && len(campusErr.Suggestions) > 0 {
		return err
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeNotAuthenticated, errors.ErrCodeSessionExpired, errors.ErrCodeUnauthorized:
		return NewErrorWithSuggestion(err, "Sign in with 'campus auth login'")
	case errors.ErrCodeInvalidCredentials:
		return NewErrorWithSuggestion(err,
			"Check your username and password, or reset it with 'campus auth forgot-password'")
	case errors.ErrCodeStepOutOfOrder:
		return NewErrorWithSuggestion(err,
			"Run 'campus auth forgot-password --restart' to start the reset again")
	case errors.ErrCodeContractViolation:
		return NewErrorWithSuggestion(err,
			"Run 'campus api check --remote' to compare the client with the deployed backend")
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigKey:
		return NewErrorWithSuggestion(err,
			"Run 'campus config view' to inspect the current configuration")
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewErrorWithSuggestion(err,
			"Check api.base_url with 'campus config get api.base_url', or start a local backend with 'campus dev-server'")
	}

	if strings.Contains(errMsg, "no route to host") {
		return NewErrorWithSuggestion(err,
			"Check your network connection and firewall settings")
	}

	if strings.Contains(errMsg, "permission denied") {
		if strings.Contains(errMsg, "credentials") {
			return NewErrorWithSuggestion(err,
				"The credentials file must be readable by you only; fix it with 'chmod 600' or use '--store memory'")
		}
		return NewErrorWithSuggestion(err,
			"Check file permissions under the campus home directory (CAMPUS_HOME)")
	}

	if strings.Contains(errMsg, "yaml:") {
		return NewErrorWithSuggestion(err,
			"Fix the syntax of config.yaml, or print its location with 'campus config path'")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
