package core

import (
	"context"
	"time"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusMock      = "mock"
)

// HealthStatus is a single component's probe result.
type HealthStatus struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Healthy builds a healthy status with optional key/value details.
func Healthy(details map[string]any) HealthStatus {
	return HealthStatus{Status: StatusHealthy, Details: details}
}

// HealthChecker is implemented by every pluggable component.
type HealthChecker interface {
	Health(ctx context.Context) (HealthStatus, error)
}

// HealthReport aggregates component probes. Agent is "unhealthy" when a probe
// call itself failed, regardless of the individual component statuses.
type HealthReport struct {
	Agent      string                  `json:"agent"`
	Timestamp  time.Time               `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
	Error      string                  `json:"error,omitempty"`
}
