package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Haleralex/walletcore/internal/config"
	"github.com/Haleralex/walletcore/internal/container"
)

// initTimeout bounds container initialization, which dials PostgreSQL,
// Redis, and NATS.
const initTimeout = 30 * time.Second

func main() {
	// A .env file is optional; deployments set real environment
	// variables.
	_ = godotenv.Load()

	cfg, err := config.Load(
		getEnv("WALLETCORE_CONFIG_PATH", "configs"),
		getEnv("WALLETCORE_CONFIG_NAME", "config"),
	)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	app := container.New(cfg)

	initCtx, cancelInit := context.WithTimeout(context.Background(), initTimeout)
	err = app.Initialize(initCtx)
	cancelInit()
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}

	runErr := app.Run()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := app.Shutdown(shutdownCtx); err != nil {
		app.Logger().Error("Shutdown finished with errors", slog.String("error", err.Error()))
	}

	if runErr != nil {
		app.Logger().Error("Server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	app.Logger().Info("Server stopped gracefully")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
