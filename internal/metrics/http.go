package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	// Type assert to concrete Metrics for Prometheus access
	metrics, ok := m.(*Metrics)
	if !ok {
		// NoopMetrics or unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // Use route pattern, not actual path
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath returns the route pattern, or "unknown" for unmatched routes
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

// RecordAuthAttempt records a terminal authentication outcome
func (m *Metrics) RecordAuthAttempt(strategy, outcome string, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	m.AuthAttemptDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordAuthFailure records why an attempt failed.
// kind must come from a fixed set; free-form reasons belong in logs.
func (m *Metrics) RecordAuthFailure(kind string) {
	m.AuthFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordDirectoryCall records a directory verification call
func (m *Metrics) RecordDirectoryCall(provider, result string, duration time.Duration) {
	m.DirectoryCallsTotal.WithLabelValues(provider, result).Inc()
	m.DirectoryCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordRateLimited records a request refused by the rate limiter
func (m *Metrics) RecordRateLimited(endpoint string) {
	m.RateLimitedTotal.WithLabelValues(endpoint).Inc()
}
