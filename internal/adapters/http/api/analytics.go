package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/sentiment/pkg/logger"
)

// AnalyticsHandler serves the /sentiment/stats views.
type AnalyticsHandler struct {
	views  Analytics
	logger logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(views Analytics, l logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{views: views, logger: l}
}

func (h *AnalyticsHandler) routes(r chi.Router) {
	r.Get("/distribution", h.view("distribution", adapt(h.views.Distribution)))
	r.Get("/models", h.view("models", adapt(h.views.ModelUsage)))
	r.Get("/kpis", h.view("kpis", adapt(h.views.KPIs)))
	r.Get("/languages", h.view("languages", adapt(h.views.LanguageDistribution)))
	r.Get("/hourly", h.view("hourly", adapt(h.views.HourlyDistribution)))
	r.Get("/sentiment-by-model", h.view("sentiment_by_model", adapt(h.views.SentimentByModel)))
	r.Get("/confidence", h.view("confidence", adapt(h.views.ConfidenceLevels)))
	r.Get("/feedback-length", h.view("feedback_length", adapt(h.views.FeedbackLength)))
	r.Get("/timeline", h.view("timeline", adapt(h.views.Timeline)))
	r.Get("/average-confidence", h.view("average_confidence", adapt(h.views.AverageConfidenceBySentiment)))
}

type viewFunc func(ctx context.Context) (any, error)

func adapt[T any](fn func(context.Context) (T, error)) viewFunc {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

func (h *AnalyticsHandler) view(name string, fn viewFunc) http.HandlerFunc {
	return MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r.Context())
		if err != nil {
			h.logger.Error(r.Context(), "analytics view failed",
				logger.String("view", name),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, codeInternal, errors.New("analytics unavailable"))
			return
		}
		writeJSON(w, http.StatusOK, out)
	}, "stats_"+name)
}
