package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything readiness depends on
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{store: store, logger: logger}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET {prefix}/health and GET /healthz. Liveness only; it
// never touches the store.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. Returns 200 only if the store answers a ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	status, code := "ready", http.StatusOK

	if h.store == nil {
		checks["store"] = "not configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := h.store.Ping(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if code != http.StatusOK {
		h.logger.Warn("readiness check failed", slog.String("store", checks["store"]))
	}
	writeJSON(w, h.logger, code, ReadinessResponse{Status: status, Checks: checks})
}
