package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/ldapauth/internal/config"

	"github.com/redis/go-redis/v9"
)

// usesRedisLimiterStore reports whether /login counters are kept in Redis.
func usesRedisLimiterStore(cfg *config.Config) bool {
	return cfg.EnableRateLimit && cfg.RateLimitStore == config.RateLimitStoreRedis
}

// initializeRateLimitRedisClient connects the store shared by every replica's
// /login limiter. It returns nil when counters live in process memory.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !usesRedisLimiterStore(cfg) {
		return nil, nil //nolint:nilnil // counters kept in memory
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.RedisConnTimeout,
	})

	// Fail at startup rather than on the first login attempt.
	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("login rate limit store unreachable at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("Login rate limit store: redis %s (db %d, %d attempts/min per client)",
		cfg.RedisAddr, cfg.RedisDB, cfg.LoginRateLimit)
	return client, nil
}
