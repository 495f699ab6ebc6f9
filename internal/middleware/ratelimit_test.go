package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRecorder records rate limit hits per endpoint.
type countingRecorder struct {
	mu      sync.Mutex
	limited map[string]int
}

func (r *countingRecorder) RecordAuthAttempt(string, string, time.Duration)   {}
func (r *countingRecorder) RecordAuthFailure(string)                          {}
func (r *countingRecorder) RecordDirectoryCall(string, string, time.Duration) {}

func (r *countingRecorder) RecordRateLimited(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limited == nil {
		r.limited = make(map[string]int)
	}
	r.limited[endpoint]++
}

func newLimitedRouter(t *testing.T, cfg RateLimitConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter, err := NewRateLimiter(cfg)
	require.NoError(t, err)
	require.NotNil(t, limiter)

	router := gin.New()
	router.Use(limiter)
	router.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func doLogin(router http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter_MemoryStore(t *testing.T) {
	rec := &countingRecorder{}
	router := newLimitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 5,
		StoreType:         RateLimitStoreMemory,
		CleanupInterval:   time.Minute,
		Endpoint:          "/login",
		Recorder:          rec,
	})

	for i := 0; i < 5; i++ {
		w := doLogin(router, "192.168.1.100")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := doLogin(router, "192.168.1.100")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "Request should be rate limited")
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, 1, rec.limited["/login"])
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	router := newLimitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 2,
		StoreType:         RateLimitStoreMemory,
	})

	// Different IPs should have independent limits
	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"} {
		for i := 0; i < 2; i++ {
			w := doLogin(router, ip)
			assert.Equal(t, http.StatusOK, w.Code, "Request %d from IP %s should succeed", i+1, ip)
		}

		w := doLogin(router, ip)
		assert.Equal(
			t,
			http.StatusTooManyRequests,
			w.Code,
			"Third request from IP %s should be rate limited",
			ip,
		)
	}
}

func TestNewRateLimiter_InvalidConfig(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 0, StoreType: RateLimitStoreMemory})
	require.Error(t, err)

	_, err = NewRateLimiter(RateLimitConfig{RequestsPerMinute: 5, StoreType: "memcache"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown rate limit store: "memcache"`)

	_, err = NewRateLimiter(RateLimitConfig{RequestsPerMinute: 5, StoreType: RateLimitStoreRedis})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is required")
}

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRateLimiter_RedisStore(t *testing.T) {
	client := newMiniredisClient(t)
	router := newLimitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 3,
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
		Endpoint:          "/login",
	})

	for i := 0; i < 3; i++ {
		w := doLogin(router, "10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}
	w := doLogin(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Another client is not affected
	w = doLogin(router, "10.0.0.2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRedisRateLimiter_SharedAcrossInstances(t *testing.T) {
	client := newMiniredisClient(t)
	cfg := RateLimitConfig{
		RequestsPerMinute: 2,
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
	}

	// Two routers play two pods sharing one Redis.
	first := newLimitedRouter(t, cfg)
	second := newLimitedRouter(t, cfg)

	assert.Equal(t, http.StatusOK, doLogin(first, "10.0.0.9").Code)
	assert.Equal(t, http.StatusOK, doLogin(second, "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLogin(first, "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLogin(second, "10.0.0.9").Code)
}

func TestRateLimiter_ResponseHeaders(t *testing.T) {
	router := newLimitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 1,
		StoreType:         RateLimitStoreMemory,
	})

	w := doLogin(router, "172.16.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doLogin(router, "172.16.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}
