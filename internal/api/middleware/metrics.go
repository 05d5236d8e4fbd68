// Package middleware provides HTTP middleware components for the bridge
// server. This file contains Prometheus metrics middleware for observability.
package middleware

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// httpRequestsTotal counts the total number of HTTP requests processed.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gembridge_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDurationSeconds tracks the duration of HTTP requests.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gembridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// streamedChunksTotal counts completion chunks written to clients.
	streamedChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gembridge_streamed_chunks_total",
			Help: "Total number of completion chunks streamed to clients",
		},
		[]string{"model"},
	)

	// engineErrorsTotal counts failures reported by the engine.
	engineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gembridge_engine_errors_total",
			Help: "Total number of engine invocation failures",
		},
		[]string{"model"},
	)

	// tokenUsage tracks token usage reported by the engine.
	tokenUsage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gembridge_token_usage_total",
			Help: "Total tokens used in completed turns",
		},
		[]string{"model", "type"}, // type: input or output
	)

	// metricsRegistered ensures metrics are only registered once.
	metricsRegistered atomic.Bool
)

// RegisterMetrics registers all Prometheus metrics.
// It is safe to call multiple times; metrics will only be registered once.
func RegisterMetrics() {
	if !metricsRegistered.CompareAndSwap(false, true) {
		return
	}
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		streamedChunksTotal,
		engineErrorsTotal,
		tokenUsage,
	)
}

// PrometheusMiddleware returns a Gin middleware that records request count
// and duration for every request except the metrics endpoint itself.
func PrometheusMiddleware() gin.HandlerFunc {
	RegisterMetrics()
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		path := normalizePath(c.Request.URL.Path)
		method := c.Request.Method
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// normalizePath collapses mirrored routes to prevent high cardinality.
func normalizePath(path string) string {
	switch {
	case path == "/v1/models" || path == "/models":
		return "/v1/models"
	case path == "/v1/chat/completions" || path == "/chat/completions":
		return "/v1/chat/completions"
	case len(path) > 11 && path[:11] == "/v1/models/":
		return "/v1/models/:id"
	default:
		if len(path) > 50 {
			return path[:50] + "..."
		}
		return path
	}
}

// MetricsHandler returns the Prometheus HTTP handler for the /metrics endpoint.
func MetricsHandler() gin.HandlerFunc {
	RegisterMetrics()
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordStreamedChunk counts one chunk written for model.
func RecordStreamedChunk(model string) {
	streamedChunksTotal.WithLabelValues(model).Inc()
}

// RecordEngineError counts one engine failure for model.
func RecordEngineError(model string) {
	engineErrorsTotal.WithLabelValues(model).Inc()
}

// RecordTokenUsage records token usage for a completed turn.
// tokenType should be either "input" or "output".
func RecordTokenUsage(model, tokenType string, tokens int) {
	if tokens > 0 {
		tokenUsage.WithLabelValues(model, tokenType).Add(float64(tokens))
	}
}
