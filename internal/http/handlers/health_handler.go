// Health endpoint.
//
// This file exposes GET/HEAD /health with a per-dependency breakdown so load
// balancers can use the status code and operators can see which dependency
// is unhappy. The endpoint requires no authentication.
package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// HealthResponse is the health endpoint's body.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Uptime      int64             `json:"uptime"`
	Environment string            `json:"environment"`
	Services    map[string]string `json:"services"`
}

// HealthHandler reports process liveness and dependency health.
type HealthHandler struct {
	environment string
	startedAt   time.Time
	checks      map[string]HealthCheck
}

// NewHealthHandler constructs a HealthHandler. checks maps dependency names
// (database, storage, ai) to their probes.
func NewHealthHandler(environment string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		environment: environment,
		startedAt:   time.Now(),
		checks:      checks,
	}
}

// Health godoc
// @ID          health
// @Summary     Health check
// @Description Reports process uptime and per-dependency health. Returns 503 when any dependency check fails.
// @Tags        System
// @Produce     json
//
// @Success     200  {object} handlers.HealthResponse
// @Failure     503  {object} handlers.HealthResponse
// @Router      /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	services := make(map[string]string, len(h.checks))

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			services[name] = "error: " + err.Error()
			status = "degraded"
		} else {
			services[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	if c.Request.Method == http.MethodHead {
		c.Status(code)
		return
	}

	c.JSON(code, HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Uptime:      int64(time.Since(h.startedAt).Seconds()),
		Environment: h.environment,
		Services:    services,
	})
}
