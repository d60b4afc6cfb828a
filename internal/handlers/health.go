// Package handlers provides the HTTP handlers for the kiosk admin API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdul-hamid-achik/kiosk/internal/logging"
)

const checkTimeout = 2 * time.Second

// Pinger reports whether a backing store is usable.
type Pinger interface {
	Ping() error
}

type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	checks  []healthCheck
	started time.Time
}

// NewHealthHandler checks store and, when non-nil, the Redis throttle backend.
func NewHealthHandler(store Pinger, rdb *redis.Client) *HealthHandler {
	h := &HealthHandler{started: time.Now()}
	h.checks = append(h.checks, healthCheck{
		name: "store",
		ping: func(context.Context) error { return store.Ping() },
	})
	if rdb != nil {
		h.checks = append(h.checks, healthCheck{
			name: "redis",
			ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return h
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Services  map[string]string `json:"services,omitempty"`
}

func (h *HealthHandler) response(status string) HealthResponse {
	now := time.Now()
	return HealthResponse{
		Status:    status,
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
	}
}

// Liveness reports that the process is serving requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.response("healthy"))
}

// Readiness runs every check and answers 503 if any of them fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := h.response("healthy")
	resp.Services = make(map[string]string, len(h.checks))
	code := http.StatusOK

	for _, p := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := p.ping(ctx)
		cancel()

		if err != nil {
			logging.Logger(r.Context()).Error("readiness check failed", "check", p.name, "error", err)
			resp.Services[p.name] = "unhealthy"
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Services[p.name] = "healthy"
	}

	jsonResponse(w, code, resp)
}
