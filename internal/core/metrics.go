package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authentication
	RecordAuthAttempt(strategy, outcome string, duration time.Duration)
	RecordAuthFailure(reason string)

	// Directory
	RecordDirectoryCall(provider, result string, duration time.Duration)

	// Rate limiting
	RecordRateLimited(endpoint string)
}
