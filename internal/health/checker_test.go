package health

import (
	"context"
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	for status, want := range map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
	} {
		if got := status.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	tests := []struct {
		result *Result
		status Status
	}{
		{Healthy("ok"), StatusHealthy},
		{Degraded("partial"), StatusDegraded},
		{Unhealthy("broken"), StatusUnhealthy},
	}
	for _, tt := range tests {
		if tt.result.Status != tt.status {
			t.Errorf("Status = %v, want %v", tt.result.Status, tt.status)
		}
		if tt.result.Details == nil || len(tt.result.Details) != 0 {
			t.Errorf("Details = %v, want empty map", tt.result.Details)
		}
	}
}

func TestResultChaining(t *testing.T) {
	result := Healthy("signed in")
	returned := result.WithDetail("role", "Teacher").WithLatency(120 * time.Millisecond)

	if returned != result {
		t.Error("chained calls should return the same result")
	}
	if result.Details["role"] != "Teacher" {
		t.Errorf("Details[role] = %q", result.Details["role"])
	}
	if result.Latency != 120*time.Millisecond {
		t.Errorf("Latency = %v", result.Latency)
	}
}

func TestCheckFunc(t *testing.T) {
	c := CheckFunc{CheckName: "config", Fn: func(context.Context) *Result { return Healthy("valid") }}
	if c.Name() != "config" {
		t.Errorf("Name() = %q", c.Name())
	}
	if got := c.Check(t.Context()); got.Message != "valid" {
		t.Errorf("Check() = %+v", got)
	}
}
