// Package health checks the pieces a campus client depends on: the token
// store, the backend, its published contract and the stored session.
//
// Checks run in parallel under a Manager, each with its own timeout:
//
//	manager := health.NewManager()
//	manager.AddChecker(health.NewBackendChecker(httpClient, baseURL))
//	manager.AddChecker(health.NewSessionChecker(store, validator))
//
//	for _, report := range manager.Check(ctx) {
//	    logger.Info("health check", "name", report.Name, "status", report.Status)
//	}
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "token-store".
	Name() string

	// Check must respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	// StatusHealthy means the dependency is fully usable.
	StatusHealthy Status = "healthy"

	// StatusDegraded means campus still works, with reduced function
	// (for example, nobody is signed in).
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means commands depending on it will fail.
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result is what a checker found.
type Result struct {
	Status  Status            `json:"status" yaml:"status"`
	Message string            `json:"message" yaml:"message"`
	Details map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration     `json:"latency" yaml:"latency"`
}

// NewResult creates a result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]string),
	}
}

// WithDetail adds a detail and returns the result for chaining.
func (r *Result) WithDetail(key, value string) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Healthy creates a healthy result.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) *Result
}

// Name returns CheckName.
func (f CheckFunc) Name() string { return f.CheckName }

// Check calls Fn.
func (f CheckFunc) Check(ctx context.Context) *Result { return f.Fn(ctx) }
