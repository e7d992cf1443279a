package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
)

// ============================================
// Outbox Handler
// ============================================

// OutboxDrainer is the synchronous drain entry point of the outbox
// publisher.
type OutboxDrainer interface {
	PublishAllPending(ctx context.Context) (int, error)
}

// OutboxHandler exposes the manual outbox drain. Operators use it to
// flush pending events without waiting for the poll interval, typically
// after the event log recovers from an outage.
type OutboxHandler struct {
	drainer OutboxDrainer
}

// NewOutboxHandler creates the handler.
func NewOutboxHandler(d OutboxDrainer) *OutboxHandler {
	return &OutboxHandler{drainer: d}
}

// Drain publishes every pending outbox row and reports how many went out.
func (h *OutboxHandler) Drain(c *gin.Context) {
	published, err := h.drainer.PublishAllPending(c.Request.Context())
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"published": published})
}

// RegisterRoutes mounts the outbox routes on the API group.
//
// Routes:
//   - POST /outbox/drain - Publish all pending outbox rows now
func (h *OutboxHandler) RegisterRoutes(router *gin.RouterGroup) {
	outbox := router.Group("/outbox")
	{
		outbox.POST("/drain", h.Drain)
	}
}
