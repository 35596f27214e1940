package api

import (
	"net/http"
)

// StatsProvider reports gateway counters and admission usage.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler wraps p.
func NewStatsHandler(p StatsProvider) *StatsHandler {
	return &StatsHandler{stats: p}
}

// HandleStats writes a point-in-time snapshot. Counters move between requests,
// so the response is never cached.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
