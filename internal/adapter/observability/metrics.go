// Package observability provides logging, metrics, and tracing.
//
// It integrates with Prometheus and OpenTelemetry so that question generation
// and performance analysis pipelines can be monitored per stage.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// AIRequestsTotal counts LLM provider requests by provider and operation.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	// AIRequestDuration observes LLM provider request latency.
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	// StageRunsTotal counts pipeline stage executions by stage and outcome
	// (ok, fallback).
	StageRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_runs_total",
			Help: "Total pipeline stage executions by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	// QuestionsGeneratedTotal counts generated questions by interview style
	// and source (llm, fallback, pregenerated).
	QuestionsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questions_generated_total",
			Help: "Total questions generated by style and source",
		},
		[]string{"style", "source"},
	)

	// ValidationAttempts observes the number of generate/validate attempts
	// needed to accept a question.
	ValidationAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "question_validation_attempts",
			Help:    "Distribution of generate/validate attempts per accepted question",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// AnalysesTotal counts performance analyses by kind (response, overall)
	// and outcome (ok, fallback).
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyses_total",
			Help: "Total performance analyses by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// OverallScoreHistogram observes the distribution of session scores.
	OverallScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_overall_score",
			Help:    "Distribution of overall session scores (0-100)",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// ActiveSessions tracks sessions currently held in the session store.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "interview_active_sessions",
			Help: "Number of sessions currently held in the session store",
		},
	)
)

// InitMetrics registers all Prometheus metrics once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(StageRunsTotal)
	prometheus.MustRegister(QuestionsGeneratedTotal)
	prometheus.MustRegister(ValidationAttempts)
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(OverallScoreHistogram)
	prometheus.MustRegister(ActiveSessions)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// RecordStage records one stage execution outcome.
func RecordStage(stage string, fallback bool) {
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	StageRunsTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordQuestion records one generated question.
func RecordQuestion(style, source string) {
	QuestionsGeneratedTotal.WithLabelValues(style, source).Inc()
}

// RecordAnalysis records one analysis outcome.
func RecordAnalysis(kind string, fallback bool) {
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	AnalysesTotal.WithLabelValues(kind, outcome).Inc()
}
