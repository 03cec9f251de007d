package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeUnauthorized       ErrorCode = "AUTH-002"
	ErrCodeRefreshFailed      ErrorCode = "AUTH-003"
	ErrCodeNoRefreshToken     ErrorCode = "AUTH-004"
	ErrCodeForgotPassword     ErrorCode = "AUTH-005"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionExpired   ErrorCode = "SESSION-001"
	ErrCodeNotAuthenticated ErrorCode = "SESSION-002"
	ErrCodeStepOutOfOrder   ErrorCode = "SESSION-003"
	ErrCodeAccessDenied     ErrorCode = "SESSION-004"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetwork ErrorCode = "NET-001"
	ErrCodeTimeout ErrorCode = "NET-002"

	// Backend API errors (API-001 to API-099)
	ErrCodeServerError        ErrorCode = "API-001"
	ErrCodeServiceUnavailable ErrorCode = "API-002"
	ErrCodeBadRequest         ErrorCode = "API-003"
	ErrCodeDecodeResponse     ErrorCode = "API-004"
	ErrCodeContractViolation  ErrorCode = "API-005"

	// Validation errors (VALIDATION-001 to VALIDATION-099)
	ErrCodeValidation ErrorCode = "VALIDATION-001"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigKey     ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// CampusError represents an enhanced error with code, suggestions, and documentation
type CampusError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *CampusError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *CampusError) Unwrap() error {
	return e.Cause
}

// New creates a new CampusError
func New(code ErrorCode, message string) *CampusError {
	return &CampusError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CampusError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *CampusError {
	return &CampusError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *CampusError) WithSuggestion(suggestion string) *CampusError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *CampusError) WithSuggestions(suggestions ...string) *CampusError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *CampusError) WithDocs(url string) *CampusError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first CampusError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var campusErr *CampusError
	if stderrors.As(err, &campusErr) {
		return campusErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a CampusError with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var campusErr *CampusError
		if !stderrors.As(err, &campusErr) {
			return false
		}
		if campusErr.Code == code {
			return true
		}
		err = campusErr.Cause
	}
	return false
}

// MessageOf returns the bare message of a CampusError without code, cause or
// suggestions. Other errors return their Error() text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var campusErr *CampusError
	if stderrors.As(err, &campusErr) {
		return campusErr.Message
	}
	return err.Error()
}

// Common error constructors for frequently used errors

// NewNotAuthenticatedError is returned by commands that need a session
func NewNotAuthenticatedError() *CampusError {
	return New(ErrCodeNotAuthenticated, "not logged in").
		WithSuggestion("Run 'campus auth login' to authenticate").
		WithSuggestion("Check the API URL with 'campus config get api.base_url'")
}

// NewSessionExpiredError is returned when the backend rejects the access token
func NewSessionExpiredError() *CampusError {
	return New(ErrCodeSessionExpired, "session expired").
		WithSuggestion("Run 'campus auth login' to sign in again")
}

// NewAccessDeniedError is returned when the signed-in role may not open a view
func NewAccessDeniedError(path, roleName string) *CampusError {
	return New(ErrCodeAccessDenied, fmt.Sprintf("%s cannot open %s", roleName, path)).
		WithSuggestion("Run 'campus open' without arguments to list the views available to you")
}

// NewNetworkError wraps a transport failure
func NewNetworkError(cause error) *CampusError {
	return Wrap(ErrCodeNetwork, "Network error", cause).
		WithSuggestion("Check your connection and the configured API URL").
		WithSuggestion("Run 'campus api check' to verify the backend contract")
}

// NewTimeoutError wraps a request that exceeded the configured timeout
func NewTimeoutError(cause error) *CampusError {
	return Wrap(ErrCodeTimeout, "Network error: request timed out", cause).
		WithSuggestion("Increase api.timeout with 'campus config set api.timeout 10s'")
}

// NewValidationError creates an input validation error
func NewValidationError(field, reason string) *CampusError {
	return New(ErrCodeValidation, fmt.Sprintf("invalid %s: %s", field, reason))
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *CampusError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *CampusError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
