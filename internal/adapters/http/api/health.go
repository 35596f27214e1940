package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/sentiment/pkg/metrics"
)

const readyTimeout = 2 * time.Second

// ReadinessChecker reports whether the service can take traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	checker ReadinessChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker ReadinessChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /healthz. It answers 503 when the store does not
// respond.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.checker.Ready(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, codeNotReady, ErrNotReady)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// MetricsHandler serves the private Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return metrics.Handler()
}
