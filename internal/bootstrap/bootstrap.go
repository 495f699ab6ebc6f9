package bootstrap

import (
	"context"
	"log"
	"net/http"

	"github.com/go-authgate/ldapauth/internal/auth"
	"github.com/go-authgate/ldapauth/internal/config"
	"github.com/go-authgate/ldapauth/internal/core"
	"github.com/go-authgate/ldapauth/internal/handlers"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	MetricsRecorder      core.Recorder
	RateLimitRedisClient *redis.Client

	// Authentication
	Verifier core.Verifier
	Strategy *auth.Strategy

	// HTTP
	LoginHandler *handlers.LoginHandler
	Router       *gin.Engine
	Server       *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	validateAllConfiguration(cfg)

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(context.Background()); err != nil {
		return err
	}

	// Phase 3: Initialize authentication
	if err := app.initializeAuthentication(); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up metrics and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeAuthentication builds the directory verifier and the login strategy
func (app *Application) initializeAuthentication() error {
	var err error

	app.Verifier, err = initializeVerifier(app.Config)
	if err != nil {
		return err
	}

	app.Strategy, err = initializeStrategy(app.Config, app.Verifier, app.MetricsRecorder)
	if err != nil {
		return err
	}

	log.Printf("Authentication mode: %s (verifier: %s)", app.Config.AuthMode, app.Verifier.Name())
	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.LoginHandler = handlers.NewLoginHandler(app.Strategy)

	app.Router = setupRouter(
		app.Config,
		app.LoginHandler,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)

	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server, app.Config.ServerShutdownTimeout)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)

	// Wait for graceful shutdown
	<-m.Done()
}
