package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
)

// RecoveryConfig tunes the panic recovery middleware.
type RecoveryConfig struct {
	Logger           *slog.Logger
	EnableStackTrace bool // attach the stack trace to the log line
	PrintStack       bool // also dump the stack to stdout
}

// DefaultRecoveryConfig logs the stack trace without printing it.
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		Logger:           slog.Default(),
		EnableStackTrace: true,
		PrintStack:       false,
	}
}

// Recovery turns a panicking handler into a logged 500 instead of a dead
// process. The response never carries the panic value.
func Recovery(config *RecoveryConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultRecoveryConfig()
	}

	return func(c *gin.Context) {
		defer handlePanic(c, config)
		c.Next()
	}
}

// handlePanic must be deferred directly so recover() sees the panic.
func handlePanic(c *gin.Context, config *RecoveryConfig) {
	rec := recover()
	if rec == nil {
		return
	}

	stack := debug.Stack()
	logPanic(c, config, rec, stack)

	if config.PrintStack {
		fmt.Printf("[Recovery] panic recovered:\n%v\n%s\n", rec, stack)
	}

	c.Abort()
	common.InternalErrorResponse(c, "An unexpected error occurred")
}

func logPanic(c *gin.Context, config *RecoveryConfig, rec interface{}, stack []byte) {
	attrs := []slog.Attr{
		slog.String("error", fmt.Sprintf("%v", rec)),
		slog.String("path", c.Request.URL.Path),
		slog.String("method", c.Request.Method),
		slog.String("client_ip", c.ClientIP()),
	}
	if config.EnableStackTrace {
		attrs = append(attrs, slog.String("stack", string(stack)))
	}

	config.Logger.LogAttrs(c.Request.Context(), slog.LevelError, "Panic recovered", attrs...)
}
