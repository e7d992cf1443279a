package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// ============================================
// Mocks
// ============================================

type mockPinger struct {
	PingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func healthyPinger() *mockPinger {
	return &mockPinger{}
}

func failingPinger(msg string) *mockPinger {
	return &mockPinger{PingFn: func(ctx context.Context) error {
		return errors.New(msg)
	}}
}

type mockDegradation struct {
	readOnly      bool
	cacheBypass   bool
	eventDegraded bool
	score         int
	summary       string
}

func (m *mockDegradation) ReadOnly() bool                { return m.readOnly }
func (m *mockDegradation) CacheBypass() bool             { return m.cacheBypass }
func (m *mockDegradation) EventProcessingDegraded() bool { return m.eventDegraded }
func (m *mockDegradation) HealthScore() int              { return m.score }
func (m *mockDegradation) Summary() string               { return m.summary }

func healthyDegradation() *mockDegradation {
	return &mockDegradation{score: 100, summary: "healthy"}
}

// ============================================
// Helper Functions
// ============================================

func setupHealthTestRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func performGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ============================================
// Test Cases
// ============================================

func TestNewHealthHandler(t *testing.T) {
	handler := NewHealthHandler(
		healthyPinger(), healthyPinger(), healthyPinger(), healthyPinger(),
		healthyDegradation(), "1.0.0", "2024-01-01")
	assert.NotNil(t, handler)
}

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, nil, nil, "1.0.0", "")
	router := setupHealthTestRouter(handler)

	w := performGet(router, "/live")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "alive", response["status"])
}

func TestHealthHandler_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), healthyPinger(), healthyPinger(),
			healthyDegradation(), "1.2.3", "2024-01-01T00:00:00Z")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/health")

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.2.3", response.Version)
		assert.Equal(t, "2024-01-01T00:00:00Z", response.BuildTime)
		assert.False(t, response.Timestamp.IsZero())
	})

	t.Run("Degraded", func(t *testing.T) {
		degradation := &mockDegradation{cacheBypass: true, score: 80, summary: "degraded: cache_bypass"}
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), failingPinger("redis down"), healthyPinger(),
			degradation, "1.2.3", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/health")

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "degraded", response.Status)
	})
}

func TestHealthHandler_Ready(t *testing.T) {
	t.Run("AllHealthy", func(t *testing.T) {
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), healthyPinger(), healthyPinger(),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusOK, w.Code)

		var response ReadinessResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.True(t, response.Ready)
		assert.Equal(t, "healthy", response.Checks["database_primary"])
		assert.Equal(t, "healthy", response.Checks["database_replica"])
		assert.Equal(t, "healthy", response.Checks["cache"])
		assert.Equal(t, "healthy", response.Checks["event_log"])
	})

	t.Run("PrimaryDown", func(t *testing.T) {
		handler := NewHealthHandler(
			failingPinger("connection refused"), healthyPinger(), healthyPinger(), healthyPinger(),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response ReadinessResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.False(t, response.Ready)
		assert.Contains(t, response.Checks["database_primary"], "unhealthy")
		assert.Contains(t, response.Checks["database_primary"], "connection refused")
	})

	t.Run("ReplicaDown", func(t *testing.T) {
		handler := NewHealthHandler(
			healthyPinger(), failingPinger("replica lagging"), healthyPinger(), healthyPinger(),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("CacheDownUnacknowledged", func(t *testing.T) {
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), failingPinger("redis down"), healthyPinger(),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response ReadinessResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.False(t, response.Ready)
		assert.Contains(t, response.Checks["cache"], "unhealthy")
	})

	t.Run("CacheDownBypassAcknowledged", func(t *testing.T) {
		degradation := &mockDegradation{cacheBypass: true, score: 80, summary: "degraded: cache_bypass"}
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), failingPinger("redis down"), healthyPinger(),
			degradation, "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusOK, w.Code)

		var response ReadinessResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.True(t, response.Ready)
		assert.Contains(t, response.Checks["cache"], "bypassed")
	})

	t.Run("EventLogDownUnacknowledged", func(t *testing.T) {
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), healthyPinger(), failingPinger("nats down"),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("EventLogDownAcknowledged", func(t *testing.T) {
		degradation := &mockDegradation{eventDegraded: true, score: 70, summary: "degraded: event_processing"}
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), healthyPinger(), failingPinger("nats down"),
			degradation, "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusOK, w.Code)

		var response ReadinessResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.True(t, response.Ready)
		assert.Contains(t, response.Checks["event_log"], "degraded")
	})

	t.Run("NilDependencyIsNotReady", func(t *testing.T) {
		handler := NewHealthHandler(
			healthyPinger(), nil, healthyPinger(), healthyPinger(),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response ReadinessResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Contains(t, response.Checks["database_replica"], "not configured")
	})

	t.Run("PingTimeoutApplies", func(t *testing.T) {
		slow := &mockPinger{PingFn: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * pingTimeout):
				return nil
			}
		}}
		handler := NewHealthHandler(
			slow, healthyPinger(), healthyPinger(), healthyPinger(),
			healthyDegradation(), "1.0.0", "")
		router := setupHealthTestRouter(handler)

		start := time.Now()
		w := performGet(router, "/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Less(t, time.Since(start), 5*pingTimeout)
	})
}

func TestHealthHandler_Degradation(t *testing.T) {
	t.Run("ReflectsManagerState", func(t *testing.T) {
		degradation := &mockDegradation{
			readOnly:      true,
			eventDegraded: true,
			score:         20,
			summary:       "degraded: read_only, event_processing",
		}
		handler := NewHealthHandler(
			healthyPinger(), healthyPinger(), healthyPinger(), healthyPinger(),
			degradation, "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/health/degradation")

		assert.Equal(t, http.StatusOK, w.Code)

		var response DegradationResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.True(t, response.ReadOnly)
		assert.False(t, response.CacheBypass)
		assert.True(t, response.EventProcessingDegraded)
		assert.Equal(t, 20, response.HealthScore)
		assert.Equal(t, "degraded: read_only, event_processing", response.Summary)
	})

	t.Run("NilManagerReportsHealthy", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, nil, nil, nil, "1.0.0", "")
		router := setupHealthTestRouter(handler)

		w := performGet(router, "/health/degradation")

		assert.Equal(t, http.StatusOK, w.Code)

		var response DegradationResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, 100, response.HealthScore)
		assert.Equal(t, "healthy", response.Summary)
	})
}
