// Package http - Router configuration for the REST API.
//
// The router is the composition point of the HTTP adapter: it chains the
// middleware, mounts the health surface and exposes every operation as a
// route dispatching into the command/query bus. Shared envelope types live
// in common/ (split out so handlers and middleware can both use them),
// per-resource handlers in handlers/, and the middleware chain in
// middleware/. No business logic lives in this layer; handlers translate
// HTTP to bus commands and queries and map errors back to statuses.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
	"github.com/Haleralex/walletcore/internal/adapters/http/handlers"
	"github.com/Haleralex/walletcore/internal/adapters/http/middleware"
	"github.com/Haleralex/walletcore/internal/application/bus"
)

// ============================================
// Router Configuration
// ============================================

// RouterConfig carries everything the route assembly needs besides the
// wired dependencies.
type RouterConfig struct {
	// Logger for the middleware chain
	Logger *slog.Logger
	// ServiceName labels traces emitted by the HTTP layer
	ServiceName string
	// Version and BuildTime are echoed by the health endpoint
	Version   string
	BuildTime string
	// Environment (development, staging, production)
	Environment string
	// AllowedOrigins for CORS in production
	AllowedOrigins []string
	// RateLimitEnabled toggles both limiters
	RateLimitEnabled bool
	// RequestsPerMinute is the global per-client budget
	RequestsPerMinute int
	// FinancialOpsPerMinute is the tighter budget on money-moving routes
	FinancialOpsPerMinute int
	// TracingEnabled mounts the OpenTelemetry gin instrumentation
	TracingEnabled bool
}

// DefaultRouterConfig returns development defaults.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:                slog.Default(),
		ServiceName:           "walletcore",
		Version:               "dev",
		BuildTime:             "unknown",
		Environment:           "development",
		AllowedOrigins:        []string{"*"},
		RateLimitEnabled:      true,
		RequestsPerMinute:     100,
		FinancialOpsPerMinute: 30,
	}
}

// ============================================
// Dependency Providers
// ============================================

// HealthProbes groups the connectivity checks for the readiness endpoint.
// A nil probe reports as not configured and keeps the service not ready.
type HealthProbes struct {
	Primary  handlers.Pinger
	Replica  handlers.Pinger
	Cache    handlers.Pinger
	EventLog handlers.Pinger
}

// ============================================
// Router Builder
// ============================================

// RouterBuilder assembles the gin engine step by step, so tests can mount
// a subset of the surface and the container can mount all of it.
type RouterBuilder struct {
	config      *RouterConfig
	bus         *bus.Bus
	probes      *HealthProbes
	degradation handlers.DegradationReader
	drainer     handlers.OutboxDrainer
}

// NewRouterBuilder creates a builder.
func NewRouterBuilder(config *RouterConfig) *RouterBuilder {
	if config == nil {
		config = DefaultRouterConfig()
	}
	return &RouterBuilder{
		config: config,
	}
}

// WithBus mounts the wallet routes dispatching into the given bus.
func (b *RouterBuilder) WithBus(busInstance *bus.Bus) *RouterBuilder {
	b.bus = busInstance
	return b
}

// WithHealthProbes wires the readiness checks.
func (b *RouterBuilder) WithHealthProbes(probes *HealthProbes) *RouterBuilder {
	b.probes = probes
	return b
}

// WithDegradation wires the degradation state into the health surface.
func (b *RouterBuilder) WithDegradation(degradation handlers.DegradationReader) *RouterBuilder {
	b.degradation = degradation
	return b
}

// WithOutboxDrainer mounts the manual outbox drain route.
func (b *RouterBuilder) WithOutboxDrainer(drainer handlers.OutboxDrainer) *RouterBuilder {
	b.drainer = drainer
	return b
}

// Build creates the configured gin engine.
func (b *RouterBuilder) Build() *gin.Engine {
	if b.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// ============================================
	// Global Middleware
	// ============================================

	// 1. Recovery runs first so nothing below can kill the process.
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           b.config.Logger,
		EnableStackTrace: b.config.Environment != "production",
	}))

	// 2. Request identity, so every later stage sees the ids.
	router.Use(middleware.RequestID())

	// 3. Tracing, so spans cover the rest of the chain.
	if b.config.TracingEnabled {
		router.Use(otelgin.Middleware(b.config.ServiceName))
	}

	// 4. CORS
	if b.config.Environment == "production" {
		router.Use(middleware.CORS(middleware.ProductionCORSConfig(b.config.AllowedOrigins)))
	} else {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}

	// 5. Logging
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    b.config.Logger,
		SkipPaths: []string{"/health", "/health/degradation", "/ready", "/live", "/metrics"},
	}))

	// 6. Rate limiting (global budget; the money routes get their own)
	if b.config.RateLimitEnabled {
		globalLimit := middleware.DefaultRateLimitConfig()
		if b.config.RequestsPerMinute > 0 {
			globalLimit.Limit = b.config.RequestsPerMinute
		}
		router.Use(middleware.RateLimit(globalLimit))
	}

	// 7. Prometheus metrics
	router.Use(middleware.Metrics())

	// ============================================
	// Metrics Endpoint
	// ============================================

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============================================
	// Health Surface
	// ============================================

	probes := b.probes
	if probes == nil {
		probes = &HealthProbes{}
	}
	healthHandler := handlers.NewHealthHandler(
		probes.Primary,
		probes.Replica,
		probes.Cache,
		probes.EventLog,
		b.degradation,
		b.config.Version,
		b.config.BuildTime,
	)
	healthHandler.RegisterRoutes(router)

	// ============================================
	// API v1 Routes
	// ============================================

	v1 := router.Group("/api/v1")

	if b.bus != nil {
		walletHandler := handlers.NewWalletHandler(b.bus)
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", walletHandler.CreateWallet)
			wallets.GET("/:id", walletHandler.GetWallet)
			wallets.GET("/:id/balance", walletHandler.HistoricalBalance)

			// Money-moving routes carry a tighter per-wallet budget.
			financialOps := wallets.Group("")
			if b.config.RateLimitEnabled {
				financialOps.Use(middleware.FinancialOpsRateLimit(b.config.FinancialOpsPerMinute))
			}
			{
				financialOps.POST("/:id/deposit", walletHandler.Deposit)
				financialOps.POST("/:id/withdraw", walletHandler.Withdraw)
				financialOps.POST("/:id/transfer", walletHandler.Transfer)
			}
		}
	}

	if b.drainer != nil {
		outboxHandler := handlers.NewOutboxHandler(b.drainer)
		outboxHandler.RegisterRoutes(v1)
	}

	// ============================================
	// 404 Handler
	// ============================================

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, 404, &common.APIError{
			Code:    common.ErrCodeNotFound,
			Message: "Endpoint not found",
			Details: map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			},
		})
	})

	return router
}

// ============================================
// Quick Setup Functions
// ============================================

// NewRouter creates a router in one call for simple setups.
func NewRouter(config *RouterConfig) *gin.Engine {
	return NewRouterBuilder(config).Build()
}

// NewDevelopmentRouter creates a router with development defaults and no
// wired dependencies. Only the health surface and metrics respond.
func NewDevelopmentRouter() *gin.Engine {
	config := DefaultRouterConfig()
	config.Environment = "development"
	return NewRouter(config)
}
