package metrics

import (
	"sync"

	"github.com/go-authgate/ldapauth/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is a type alias for core.Recorder.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authentication Metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	AuthAttemptDuration *prometheus.HistogramVec
	AuthFailuresTotal   *prometheus.CounterVec

	// Directory Metrics
	DirectoryCallsTotal   *prometheus.CounterVec
	DirectoryCallDuration *prometheus.HistogramVec

	// Rate Limiting Metrics
	RateLimitedTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	return GetMetrics()
}

// GetMetrics returns the process-wide Prometheus metrics, registering them on first use.
func GetMetrics() *Metrics {
	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		AuthAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"strategy", "outcome"}, // outcome: success, fail, error
		),
		AuthAttemptDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_attempt_duration_seconds",
				Help:    "Time taken to reach a terminal authentication outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		AuthFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_failures_total",
				Help: "Total number of failed authentication attempts by kind",
			},
			[]string{"kind"}, // missing_credentials, rejected, callback
		),

		DirectoryCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "directory_calls_total",
				Help: "Total number of directory verification calls",
			},
			[]string{"provider", "result"}, // result: match, rejected, error
		),
		DirectoryCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "directory_call_duration_seconds",
				Help:    "Directory verification call duration",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"provider"},
		),

		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
	}
}
