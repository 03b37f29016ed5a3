package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Check pings one dependency
type Check func(ctx context.Context) error

// HealthHandler reports service and dependency status
type HealthHandler struct {
	service string
	env     string
	checks  map[string]Check
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service, env string) *HealthHandler {
	return &HealthHandler{
		service: service,
		env:     env,
		checks:  make(map[string]Check),
		timeout: 2 * time.Second,
	}
}

// AddCheck registers a dependency check (database, redis, ...)
func (h *HealthHandler) AddCheck(name string, c Check) *HealthHandler {
	h.checks[name] = c
	return h
}

// Health returns server health status.
// Any failing dependency turns the response into 503.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      h.service,
		"env":          h.env,
		"dependencies": deps,
	})
}
