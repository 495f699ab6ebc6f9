package bootstrap

import (
	"log"

	"github.com/go-authgate/ldapauth/internal/config"
	"github.com/go-authgate/ldapauth/internal/metrics"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

// initializeMetrics returns the Prometheus recorder, or a no-op one when
// metrics are disabled
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	}
	return recorder
}
