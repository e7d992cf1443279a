// Health endpoints for orchestrators and operators.
//
// Liveness says the process is up. Readiness says traffic can be served:
// a dependency may be down as long as the degradation manager has
// acknowledged it and the service adapted (cache bypass, degraded event
// processing). The degradation endpoint exposes the manager's state.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// pingTimeout bounds each dependency probe during a readiness check.
const pingTimeout = 2 * time.Second

// ============================================
// Health Check Handler
// ============================================

// Pinger is the connectivity probe the readiness check runs against each
// dependency. Satisfied by the pgx pools and the breaker-wrapped cache
// and event log.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DegradationReader is the view of the degradation manager the health
// surface needs.
type DegradationReader interface {
	ReadOnly() bool
	CacheBypass() bool
	EventProcessingDegraded() bool
	HealthScore() int
	Summary() string
}

// HealthHandler serves the health check endpoints.
type HealthHandler struct {
	primary     Pinger
	replica     Pinger
	cache       Pinger
	eventLog    Pinger
	degradation DegradationReader
	version     string
	buildTime   string
	startTime   time.Time
}

// NewHealthHandler creates the handler. Primary and replica may be the
// same pool when no replica is configured.
func NewHealthHandler(
	primary, replica, cache, eventLog Pinger,
	degradation DegradationReader,
	version, buildTime string,
) *HealthHandler {
	return &HealthHandler{
		primary:     primary,
		replica:     replica,
		cache:       cache,
		eventLog:    eventLog,
		degradation: degradation,
		version:     version,
		buildTime:   buildTime,
		startTime:   time.Now(),
	}
}

// ============================================
// Response Types
// ============================================

// HealthResponse is the basic health status.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Version   string    `json:"version"`
	BuildTime string    `json:"build_time"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse reports per-dependency checks.
type ReadinessResponse struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// DegradationResponse is the manager's state for operators.
type DegradationResponse struct {
	ReadOnly                bool   `json:"read_only_mode"`
	CacheBypass             bool   `json:"cache_bypass_mode"`
	EventProcessingDegraded bool   `json:"event_processing_degraded"`
	HealthScore             int    `json:"health_score"`
	Summary                 string `json:"summary"`
}

// ============================================
// HTTP Handlers
// ============================================

// Health returns the overall status derived from the degradation score.
func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	if h.degradation != nil && h.degradation.HealthScore() < 100 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Version:   h.version,
		BuildTime: h.buildTime,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

// Live is the liveness probe. Reaching the handler at all is the check.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// Ready is the readiness probe. The databases must answer. The cache and
// the event log may be down only if the degradation manager has already
// acknowledged the outage; otherwise the service reports not ready and
// the orchestrator holds traffic until the flags catch up.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := make(map[string]string)
	ready := true

	if err := h.ping(c.Request.Context(), h.primary); err != nil {
		checks["database_primary"] = "unhealthy: " + err.Error()
		ready = false
	} else {
		checks["database_primary"] = "healthy"
	}

	if err := h.ping(c.Request.Context(), h.replica); err != nil {
		checks["database_replica"] = "unhealthy: " + err.Error()
		ready = false
	} else {
		checks["database_replica"] = "healthy"
	}

	if err := h.ping(c.Request.Context(), h.cache); err != nil {
		if h.degradation != nil && h.degradation.CacheBypass() {
			checks["cache"] = "bypassed: " + err.Error()
		} else {
			checks["cache"] = "unhealthy: " + err.Error()
			ready = false
		}
	} else {
		checks["cache"] = "healthy"
	}

	if err := h.ping(c.Request.Context(), h.eventLog); err != nil {
		if h.degradation != nil && h.degradation.EventProcessingDegraded() {
			checks["event_log"] = "degraded: " + err.Error()
		} else {
			checks["event_log"] = "unhealthy: " + err.Error()
			ready = false
		}
	} else {
		checks["event_log"] = "healthy"
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Ready:     ready,
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	})
}

// Degradation exposes the degradation manager's flags and composite score.
func (h *HealthHandler) Degradation(c *gin.Context) {
	if h.degradation == nil {
		c.JSON(http.StatusOK, DegradationResponse{HealthScore: 100, Summary: "healthy"})
		return
	}

	c.JSON(http.StatusOK, DegradationResponse{
		ReadOnly:                h.degradation.ReadOnly(),
		CacheBypass:             h.degradation.CacheBypass(),
		EventProcessingDegraded: h.degradation.EventProcessingDegraded(),
		HealthScore:             h.degradation.HealthScore(),
		Summary:                 h.degradation.Summary(),
	})
}

// ping probes one dependency with a bounded timeout. A nil dependency
// fails closed: operators see "not configured" rather than a false ready.
func (h *HealthHandler) ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return errNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}

type notConfiguredError struct{}

func (notConfiguredError) Error() string { return "not configured" }

var errNotConfigured = notConfiguredError{}

// RegisterRoutes mounts the health endpoints at the root.
//
// Routes:
//   - GET /health             - Basic status
//   - GET /health/degradation - Degradation manager state
//   - GET /ready              - Readiness probe
//   - GET /live               - Liveness probe
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/health/degradation", h.Degradation)
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
}
