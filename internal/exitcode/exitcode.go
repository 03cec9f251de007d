package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/campus/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or input (bad flags, missing args, invalid values)
	UsageError = 2

	// ContractViolation indicates the client and the backend contract disagree
	ContractViolation = 3

	// AccessDenied indicates the signed-in role may not open the requested view
	AccessDenied = 4

	// AuthError indicates missing, rejected or expired credentials
	AuthError = 5

	// NetworkError indicates the backend could not be reached or is unavailable
	NetworkError = 6

	// Interrupted indicates the command was cancelled by SIGINT or SIGTERM
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Coded errors are mapped
// by their code family; other errors fall back to message heuristics.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if code := errors.CodeOf(err); code != "" {
		return fromCode(code)
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors (cobra reports these as plain errors)
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") ||
		strings.Contains(errMsg, "invalid argument") {
		return UsageError
	}

	// Authentication errors
	if strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "not logged in") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	return GeneralError
}

func fromCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeAccessDenied:
		return AccessDenied
	case errors.ErrCodeContractViolation:
		return ContractViolation
	case errors.ErrCodeValidation, errors.ErrCodeStepOutOfOrder,
		errors.ErrCodeConfigKey, errors.ErrCodeConfigInvalid:
		return UsageError
	}

	family, _, _ := strings.Cut(string(code), "-")
	switch family {
	case "AUTH", "SESSION":
		return AuthError
	case "NET":
		return NetworkError
	case "API":
		if code == errors.ErrCodeServiceUnavailable {
			return NetworkError
		}
		return GeneralError
	default:
		return GeneralError
	}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or input)"
	case ContractViolation:
		return "Backend contract violation"
	case AccessDenied:
		return "Access denied for the current role"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
