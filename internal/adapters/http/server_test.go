package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer boots a server on a random port and returns it with the
// channel its Start error will arrive on.
func startTestServer(t *testing.T) (*Server, chan error) {
	t.Helper()

	router := gin.New()
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	server := NewServer(&ServerConfig{
		Host:            "localhost",
		Port:            "0",
		ShutdownTimeout: 5 * time.Second,
		Logger:          quietLogger(),
	}, router)

	errChan := make(chan error, 1)
	go func() { errChan <- server.Start() }()

	// Give the listener time to come up.
	time.Sleep(100 * time.Millisecond)
	return server, errChan
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.NotNil(t, cfg.Logger)
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		host string
		port string
		want string
	}{
		{"localhost", "8080", "localhost:8080"},
		{"0.0.0.0", "3000", "0.0.0.0:3000"},
		{"", "8080", ":8080"},
		{"10.0.0.5", "9000", "10.0.0.5:9000"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		assert.Equal(t, tt.want, cfg.Address())
	}
}

func TestNewServer_ConfigPropagatesToHTTPServer(t *testing.T) {
	cfg := &ServerConfig{
		Host:         "localhost",
		Port:         "9999",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  20 * time.Second,
		Logger:       quietLogger(),
	}

	server := NewServer(cfg, gin.New())
	require.NotNil(t, server)

	assert.Equal(t, "localhost:9999", server.httpServer.Addr)
	assert.Equal(t, 5*time.Second, server.httpServer.ReadTimeout)
	assert.Equal(t, 10*time.Second, server.httpServer.WriteTimeout)
	assert.Equal(t, 20*time.Second, server.httpServer.IdleTimeout)
}

func TestNewServer_NilConfigUsesDefaults(t *testing.T) {
	server := NewServer(nil, gin.New())

	require.NotNil(t, server)
	assert.Equal(t, "0.0.0.0:8080", server.config.Address())
}

func TestServer_GracefulShutdown(t *testing.T) {
	server, errChan := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, server.Shutdown(ctx))

	// Start filters ErrServerClosed, so a clean shutdown yields nil.
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}
}

func TestServer_RunWithContext_StopsOnCancel(t *testing.T) {
	router := gin.New()
	server := NewServer(&ServerConfig{
		Host:            "localhost",
		Port:            "0",
		ShutdownTimeout: time.Second,
		Logger:          quietLogger(),
	}, router)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.RunWithContext(ctx) }()

	// Give the listener time to come up.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestServer_ServesProjectRouter(t *testing.T) {
	server := NewServer(&ServerConfig{
		Host:   "localhost",
		Port:   "8080",
		Logger: quietLogger(),
	}, NewDevelopmentRouter())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort string
	}{
		{":8080", "", "8080"},
		{"localhost:3000", "localhost", "3000"},
		{"10.0.0.5:9000", "10.0.0.5", "9000"},
		{"8080", "", "8080"},
		{"", "", ""},
	}

	for _, tt := range tests {
		host, port := parseAddress(tt.addr)
		assert.Equal(t, tt.wantHost, host, "addr %q", tt.addr)
		assert.Equal(t, tt.wantPort, port, "addr %q", tt.addr)
	}
}
