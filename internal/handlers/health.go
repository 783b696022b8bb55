package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency probe in extended mode
const healthCheckTimeout = 5 * time.Second

// Checker probes one dependency
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checker
type CheckFunc func(ctx context.Context) error

// HealthCheck implements Checker
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks map[string]Checker
}

// NewHealthChecker creates a health checker over the named dependencies.
// Nil checkers are skipped so optional services can be passed unconditionally.
func NewHealthChecker(checks map[string]Checker) *HealthChecker {
	active := make(map[string]Checker, len(checks))
	for name, c := range checks {
		if c != nil {
			active[name] = c
		}
	}
	return &HealthChecker{checks: active}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for name, c := range h.checks {
			if err := probe(r.Context(), c); err != nil {
				response.Status = "unhealthy"
				response.Checks[name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				continue
			}
			response.Checks[name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func probe(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.HealthCheck(ctx)
}
