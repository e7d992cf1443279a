// Package common holds the shared types of the HTTP layer.
//
// It lives in its own package so handlers and the router can share the
// response envelope without import cycles.
package common

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

// ============================================
// Standard API Response Format
// ============================================

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Meta      *APIMeta    `json:"meta,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIMeta carries pagination metadata.
type APIMeta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// APIError is the error payload inside the envelope. Code carries the
// stable machine-readable code from the domain taxonomy.
type APIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Fields     []FieldError           `json:"fields,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ============================================
// HTTP-layer Error Codes
// ============================================

// Codes for failures that originate in the HTTP layer itself. Domain
// failures keep their own codes (domainerrors.Code).
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ============================================
// Request ID
// ============================================

// RequestIDKey is the gin context key under which the request-id
// middleware stores the current id.
const RequestIDKey = "request_id"

// GetRequestID returns the request ID stored by the middleware.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// ============================================
// Response Helpers
// ============================================

// Success sends a successful response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// SuccessWithMeta sends a successful response with pagination metadata.
func SuccessWithMeta(c *gin.Context, statusCode int, data interface{}, meta *APIMeta) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Data:      data,
		Meta:      meta,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, apiError *APIError) {
	c.JSON(statusCode, APIResponse{
		Success:   false,
		Error:     apiError,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// ============================================
// Error Response Helpers
// ============================================

// ValidationErrorResponse renders field-level validation failures.
func ValidationErrorResponse(c *gin.Context, fields []FieldError) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    domainerrors.CodeValidation,
		Message: "Request validation failed",
		Fields:  fields,
	})
}

// NotFoundResponse renders a 404.
func NotFoundResponse(c *gin.Context, resource string) {
	Error(c, http.StatusNotFound, &APIError{
		Code:    ErrCodeNotFound,
		Message: resource + " not found",
		Details: map[string]interface{}{
			"resource": resource,
		},
	})
}

// BadRequestResponse renders a 400 for malformed requests.
func BadRequestResponse(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
	})
}

// TooManyRequestsResponse renders a 429 with a Retry-After hint.
func TooManyRequestsResponse(c *gin.Context, retryAfter int) {
	Error(c, http.StatusTooManyRequests, &APIError{
		Code:       domainerrors.DegradationRateLimited,
		Message:    "Too many requests, please try again later",
		RetryAfter: retryAfter,
	})
}

// InternalErrorResponse renders a 500 without leaking internals.
func InternalErrorResponse(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, &APIError{
		Code:    ErrCodeInternal,
		Message: message,
	})
}

// ============================================
// Domain Error to HTTP Error Mapper
// ============================================

// HandleDomainError translates a domain error into an HTTP response.
//
// Status mapping:
//   - ValidationError                -> 400
//   - WalletNotFound                 -> 404
//   - OptimisticLock, StatusViolation -> 409
//   - InsufficientFunds, InvalidTransfer -> 422
//   - ServiceDegraded{RATE_LIMITED}  -> 429
//   - other ServiceDegraded, Transient -> 503
//   - everything else                -> 500
func HandleDomainError(c *gin.Context, err error) {
	// 1. Validation failures carry field-level detail.
	if domainerrors.IsValidation(err) {
		ValidationErrorResponse(c, validationFields(err))
		return
	}

	// 2. Unknown wallet.
	if domainerrors.IsNotFound(err) {
		NotFoundResponse(c, "Wallet")
		return
	}

	// 3. Version conflict that survived the retry budget.
	if domainerrors.IsOptimisticLock(err) {
		Error(c, http.StatusConflict, &APIError{
			Code:    domainerrors.CodeOptimisticLock,
			Message: "Resource was modified by another request, please retry",
			Details: map[string]interface{}{
				"retryable": true,
			},
		})
		return
	}

	// 4. Frozen or closed wallet.
	var statusErr *domainerrors.WalletStatusViolationError
	if errors.As(err, &statusErr) {
		Error(c, http.StatusConflict, &APIError{
			Code:    domainerrors.CodeWalletStatusViolation,
			Message: statusErr.Error(),
			Details: map[string]interface{}{
				"wallet_id": statusErr.WalletID,
				"status":    statusErr.Status,
			},
		})
		return
	}

	// 5. Business rule rejections: the request was well-formed but cannot
	// be satisfied.
	var fundsErr *domainerrors.InsufficientFundsError
	if errors.As(err, &fundsErr) {
		Error(c, http.StatusUnprocessableEntity, &APIError{
			Code:    domainerrors.CodeInsufficientFunds,
			Message: "Insufficient funds",
			Details: map[string]interface{}{
				"wallet_id": fundsErr.WalletID,
				"available": fundsErr.Available.String(),
				"requested": fundsErr.Requested.String(),
			},
		})
		return
	}

	var transferErr *domainerrors.InvalidTransferError
	if errors.As(err, &transferErr) {
		Error(c, http.StatusUnprocessableEntity, &APIError{
			Code:    domainerrors.CodeInvalidTransfer,
			Message: transferErr.Error(),
		})
		return
	}

	// 6. Degradation rejections. Rate limiting gets its own status.
	var degradedErr *domainerrors.ServiceDegradedError
	if errors.As(err, &degradedErr) {
		if degradedErr.DegradationCode == domainerrors.DegradationRateLimited {
			TooManyRequestsResponse(c, 60)
			return
		}
		Error(c, http.StatusServiceUnavailable, &APIError{
			Code:    domainerrors.CodeServiceDegraded,
			Message: degradedErr.Message,
			Details: map[string]interface{}{
				"degradation_code": degradedErr.DegradationCode,
				"operation":        degradedErr.Operation,
			},
		})
		return
	}

	// 7. Transport failures that reached the surface unretried.
	if domainerrors.IsTransient(err) {
		Error(c, http.StatusServiceUnavailable, &APIError{
			Code:    domainerrors.CodeTransient,
			Message: "A dependency is temporarily unavailable, please retry",
		})
		return
	}

	// 8. Default: never leak internals.
	InternalErrorResponse(c, "An unexpected error occurred")
}

// validationFields flattens single and collected validation errors into
// field errors for the response.
func validationFields(err error) []FieldError {
	var many domainerrors.ValidationErrors
	if errors.As(err, &many) {
		fields := make([]FieldError, 0, len(many))
		for _, v := range many {
			fields = append(fields, FieldError{Field: v.Field, Message: v.Message, Code: "invalid"})
		}
		return fields
	}

	var one domainerrors.ValidationError
	if errors.As(err, &one) {
		return []FieldError{{Field: one.Field, Message: one.Message, Code: "invalid"}}
	}

	return nil
}
