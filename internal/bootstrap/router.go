package bootstrap

import (
	"log"

	"github.com/go-authgate/ldapauth/internal/config"
	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/handlers"
	"github.com/go-authgate/ldapauth/internal/metrics"
	"github.com/go-authgate/ldapauth/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	login *handlers.LoginHandler,
	recorder core.Recorder,
	rateLimitRedisClient *redis.Client,
) *gin.Engine {
	// Setup Gin mode
	setupGinMode(cfg)
	r := gin.New()
	setupTrustedProxies(r, cfg)

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.RequestContext())

	// Health check endpoint
	r.GET("/health", handlers.Health)

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Login route
	loginLimiter := setupLoginRateLimiter(cfg, recorder, rateLimitRedisClient)
	r.POST("/login", loginLimiter, login.Login)

	// Log server startup info
	logServerStartup(cfg)

	return r
}

// setupTrustedProxies limits which peers may set the client IP through
// forwarding headers. The login rate limiter keys on that IP.
func setupTrustedProxies(r *gin.Engine, cfg *config.Config) {
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
	}
	if len(cfg.TrustedProxies) == 0 {
		log.Println("Forwarding headers ignored (no TRUSTED_PROXIES)")
		return
	}
	log.Printf("Trusted proxies: %v", cfg.TrustedProxies)
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("LDAP login server starting on %s", cfg.ServerAddr)
	log.Printf("Credential fields: %q / %q", cfg.AuthUsernameField, cfg.AuthPasswordField)
	if len(cfg.AuthRequiredGroups) > 0 {
		log.Printf("Required groups (any of): %v", cfg.AuthRequiredGroups)
	}
}
