// Package metrics defines the Prometheus collectors used by the studio
// services and the server that exposes them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the studio.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	MatchScore           prometheus.Histogram
	ExtractionsTotal     *prometheus.CounterVec
	LLMRequestsTotal     *prometheus.CounterVec
	LLMLatency           *prometheus.HistogramVec
	LLMRetriesTotal      *prometheus.CounterVec
	PDFRendersTotal      *prometheus.CounterVec
	PDFRenderDuration    *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RateLimitedTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		MatchScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "resume_match_score",
			Help:    "Distribution of resume/job keyword match scores (0-100).",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ExtractionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "document_extractions_total",
			Help: "Text extractions by document kind and outcome.",
		}, []string{"kind", "status"}),

		LLMRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "LLM completion attempts by model and outcome.",
		}, []string{"model", "status"}),
		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_latency_seconds",
			Help:    "LLM completion latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"model"}),
		LLMRetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_retries_total",
			Help: "LLM completion retries after a transient failure, by model.",
		}, []string{"model"}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "llm_cache_hits_total",
			Help: "LLM results served from the cache.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "llm_cache_misses_total",
			Help: "LLM results computed because the cache had no entry.",
		}),

		PDFRendersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdf_renders_total",
			Help: "PDF renders by engine and outcome.",
		}, []string{"engine", "status"}),
		PDFRenderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdf_render_duration_seconds",
			Help:    "PDF render latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"engine"}),

		RateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
	}
}
