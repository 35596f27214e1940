// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/okian/sentiment/pkg/logger"
	"golang.org/x/time/rate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Analyzer
	StatsProvider
	ReadinessChecker
}

// Analyzer runs and lists sentiment analyses.
type Analyzer interface {
	CreateAnalysis(ctx context.Context, req analysis.Request) (analysis.Prediction, error)
	History(ctx context.Context, req analysis.PageRequest) (analysis.Page, error)
}

// Analytics serves the dashboard views.
type Analytics interface {
	Distribution(ctx context.Context) (analysis.ChartData, error)
	ModelUsage(ctx context.Context) (analysis.ChartData, error)
	KPIs(ctx context.Context) (analysis.KPIs, error)
	LanguageDistribution(ctx context.Context) (analysis.ChartData, error)
	HourlyDistribution(ctx context.Context) (analysis.ChartData, error)
	SentimentByModel(ctx context.Context) (analysis.StackedChartData, error)
	ConfidenceLevels(ctx context.Context) (analysis.ChartData, error)
	FeedbackLength(ctx context.Context) (analysis.ChartData, error)
	Timeline(ctx context.Context) (analysis.ChartData, error)
	AverageConfidenceBySentiment(ctx context.Context) (analysis.RatioChartData, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sentimentHandler *SentimentHandler
	analyticsHandler *AnalyticsHandler

	origins []string
	limiter *rate.Limiter
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the access log and handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAllowedOrigins sets the CORS allow list. Empty means any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRateLimit limits POST /sentiment to rps requests per second with the
// given burst. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, analytics Analytics, opts ...Option) *Server {
	s := &Server{
		origins: []string{"*"},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.sentimentHandler = NewSentimentHandler(deps, s.logger)
	s.analyticsHandler = NewAnalyticsHandler(analytics, s.logger)
	return s
}

// Router builds a chi router carrying the middleware chain and every API
// route. More routes may be added to the result.
func (s *Server) Router(_ context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/sentiment", func(r chi.Router) {
		r.With(RateLimit(s.limiter)).
			Post("/", MetricsMiddleware(s.sentimentHandler.HandleCreate, "sentiment_create"))
		r.Get("/history", MetricsMiddleware(s.sentimentHandler.HandleHistory, "sentiment_history"))
		r.Route("/stats", s.analyticsHandler.routes)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
