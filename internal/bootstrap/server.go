package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-authgate/ldapauth/internal/config"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// minWriteTimeout bounds how long a response may take to be written.
const minWriteTimeout = 30 * time.Second

// createHTTPServer creates the login server. The write timeout leaves room
// for a directory round trip, retries included.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       120 * time.Second,
	}
}

// writeTimeout returns twice the directory timeout of the active AUTH_MODE,
// never less than minWriteTimeout.
func writeTimeout(cfg *config.Config) time.Duration {
	dirTimeout := cfg.LDAP.Timeout
	if cfg.AuthMode == config.AuthModeHTTPAPI {
		dirTimeout = cfg.HTTPAPITimeout * time.Duration(cfg.HTTPAPIMaxRetries+1)
	}
	return max(2*dirTimeout, minWriteTimeout)
}

// addServerRunningJob serves logins until the manager stops
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			log.Printf("Accepting logins on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Login server failed: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob drains in-flight logins for up to timeout
func addServerShutdownJob(m *graceful.Manager, srv *http.Server, timeout time.Duration) {
	m.AddShutdownJob(func() error {
		log.Printf("Draining in-flight logins (up to %s)...", timeout)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Login server forced to stop: %v", err)
			return err
		}

		log.Println("Login server stopped")
		return nil
	})
}

// addRedisClientShutdownJob closes the rate limit store connection
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing rate limit store: %v", err)
			return err
		}
		log.Println("Rate limit store closed")
		return nil
	})
}
