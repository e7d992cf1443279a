package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingConfig tunes the request logging middleware.
type LoggingConfig struct {
	Logger          *slog.Logger
	SkipPaths       []string // paths to skip, e.g. probe endpoints
	LogRequestBody  bool     // careful: request bodies may carry PII
	LogResponseBody bool
	MaxBodySize     int // bodies are truncated beyond this many bytes
}

// DefaultLoggingConfig skips the probe and metrics endpoints and logs no
// bodies.
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Logger:      slog.Default(),
		SkipPaths:   []string{"/health", "/ready", "/live", "/metrics"},
		MaxBodySize: 1024,
	}
}

// Logging writes one structured line per request: method, path, status,
// duration, client address and sizes. The request and correlation ids are
// not attached here; the logger's context handler injects them from the
// request context.
func Logging(config *LoggingConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		requestBody := captureRequestBody(c, config)

		var responseBody *bytes.Buffer
		if config.LogResponseBody {
			tee := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
			c.Writer = tee
			responseBody = tee.body
		}

		c.Next()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("query", c.Request.URL.RawQuery),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.Int("response_size", c.Writer.Size()),
		}
		if requestBody != "" {
			attrs = append(attrs, slog.String("request_body", requestBody))
		}
		if responseBody != nil && responseBody.Len() > 0 {
			attrs = append(attrs, slog.String("response_body",
				truncateString(responseBody.String(), config.MaxBodySize)))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		config.Logger.LogAttrs(c.Request.Context(), levelForStatus(c.Writer.Status()),
			"HTTP Request", attrs...)
	}
}

// captureRequestBody reads and restores the request body when body logging
// is on. The body must be replaced because handlers read it too.
func captureRequestBody(c *gin.Context, config *LoggingConfig) string {
	if !config.LogRequestBody || c.Request.Body == nil {
		return ""
	}
	bodyBytes, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return truncateString(string(bodyBytes), config.MaxBodySize)
}

// levelForStatus maps 5xx to error, 4xx to warn, the rest to info.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// bodyLogWriter tees the response body into a buffer.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}
