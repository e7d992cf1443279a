// Package middleware contains the HTTP middleware chain: request identity,
// logging, panic recovery, CORS, rate limiting and metrics. Each middleware
// covers one cross-cutting concern; the router composes them.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
	"github.com/Haleralex/walletcore/internal/pkg/logger"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"

	// CorrelationIDHeader lets a caller thread one id through a chain of
	// services. Defaults to the request id when absent.
	CorrelationIDHeader = "X-Correlation-ID"
)

// RequestID assigns every request an id and a correlation id. A client-
// supplied X-Request-ID is honored, otherwise a UUID is generated. Both
// ids go into the gin context for the response envelope and into the
// request context so every log line below picks them up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = requestID
		}

		c.Set(common.RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Header(CorrelationIDHeader, correlationID)

		ctx := logger.WithAllIDs(c.Request.Context(), correlationID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID extracts the request id from the gin context.
func GetRequestID(c *gin.Context) string {
	return common.GetRequestID(c)
}
