// Package metrics provides Prometheus metrics for the sentiment gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Predictor client
	predictorRequests *prometheus.CounterVec
	predictorLatency  prometheus.Histogram

	// Admission gate
	admissionCapacity  prometheus.Gauge
	admissionInFlight  prometheus.Gauge
	admissionRejected  prometheus.Counter
	admissionGranted   prometheus.Counter

	// Analysis store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Orchestration
	analysesCompleted prometheus.Counter
	analysesFailed    *prometheus.CounterVec
	stageTransitions  *prometheus.CounterVec

	// Analytics
	analyticsLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to keep the exposition free of unrelated default metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry.MustRegister(collectors.NewGoCollector())
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors land on a fresh private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sentiment",
		subsystem:        "gateway",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.predictorRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "predictor_requests_total",
		Help:        "Predictor calls by outcome (ok, timeout, connection, remote_client, remote_server, parse, canceled)",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.predictorLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "predictor_latency_seconds",
		Help:        "Predictor round trip latency in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.admissionCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "admission_capacity",
		Help:        "Configured number of admission permits",
		ConstLabels: m.constLabels,
	})

	m.admissionInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "admission_in_flight",
		Help:        "Admission permits currently held",
		ConstLabels: m.constLabels,
	})

	m.admissionRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "admission_rejected_total",
		Help:        "Writes rejected because no permit was available",
		ConstLabels: m.constLabels,
	})

	m.admissionGranted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "admission_granted_total",
		Help:        "Permits granted",
		ConstLabels: m.constLabels,
	})

	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_query_seconds",
		Help:        "Analysis store operation latency in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"op"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_errors_total",
		Help:        "Analysis store failures by operation and kind",
		ConstLabels: m.constLabels,
	}, []string{"op", "kind"})

	m.analysesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "analyses_completed_total",
		Help:        "Analyses predicted and persisted",
		ConstLabels: m.constLabels,
	})

	m.analysesFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "analyses_failed_total",
		Help:        "Analyses that ended unavailable, by terminal stage",
		ConstLabels: m.constLabels,
	}, []string{"stage"})

	m.stageTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_transitions_total",
		Help:        "Orchestration stages entered",
		ConstLabels: m.constLabels,
	}, []string{"stage"})

	m.analyticsLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "analytics_seconds",
		Help:        "Aggregate computation latency in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"view"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_seconds",
		Help:        "HTTP request duration in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_rate_limited_total",
		Help:        "Requests rejected by the inbound rate limiter",
		ConstLabels: m.constLabels,
	})
}

// Predictor

// RecordPredictorRequest counts one predictor call and its latency.
func RecordPredictorRequest(outcome string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.predictorRequests.WithLabelValues(outcome).Inc()
	globalManager.predictorLatency.Observe(seconds)
}

// Admission

func UpdateAdmissionCapacity(capacity int) {
	globalManager.admissionCapacity.Set(float64(capacity))
}

func UpdateAdmissionInFlight(n int64) {
	globalManager.admissionInFlight.Set(float64(n))
}

func RecordAdmissionGranted() {
	globalManager.admissionGranted.Inc()
}

func RecordAdmissionRejected() {
	globalManager.admissionRejected.Inc()
}

// Store

func RecordStoreQuery(op string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(seconds)
}

func RecordStoreError(op, kind string) {
	globalManager.storeErrors.WithLabelValues(op, kind).Inc()
}

// Orchestration

func RecordStage(stage string) {
	globalManager.stageTransitions.WithLabelValues(stage).Inc()
}

func RecordAnalysisCompleted() {
	globalManager.analysesCompleted.Inc()
}

func RecordAnalysisFailed(stage string) {
	globalManager.analysesFailed.WithLabelValues(stage).Inc()
}

// Analytics

func RecordAnalytics(view string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.analyticsLatency.WithLabelValues(view).Observe(seconds)
}

// HTTP

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

func RecordRateLimited() {
	globalManager.httpRateLimited.Inc()
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{Registry: customRegistry})
}
