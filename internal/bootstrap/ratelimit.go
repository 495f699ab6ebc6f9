package bootstrap

import (
	"log"

	"github.com/go-authgate/ldapauth/internal/config"
	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// setupLoginRateLimiter returns the /login rate limiter, or a pass-through
// middleware when rate limiting is disabled
func setupLoginRateLimiter(
	cfg *config.Config,
	recorder core.Recorder,
	redisClient *redis.Client,
) gin.HandlerFunc {
	if !cfg.EnableRateLimit {
		log.Println("Rate limiting disabled")
		return func(c *gin.Context) { c.Next() }
	}

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	if storeType == middleware.RateLimitStoreRedis {
		log.Printf("Rate limiting enabled (store: redis, %d/min)", cfg.LoginRateLimit)
	} else {
		log.Printf("Rate limiting enabled (store: memory, %d/min, single instance only)",
			cfg.LoginRateLimit)
	}

	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.LoginRateLimit,
		CleanupInterval:   cfg.RateLimitCleanupInterval,
		StoreType:         storeType,
		RedisClient:       redisClient,
		Endpoint:          "/login",
		Recorder:          recorder,
	})
	if err != nil {
		log.Fatalf("Failed to create rate limiter for /login: %v", err)
	}
	return limiter
}
