// Package config - Application configuration management.
//
// Uses Viper for:
// - Loading from YAML files
// - Environment variables
// - Default values
//
// Priority order (highest to lowest):
// 1. Environment variables
// 2. Config file
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ============================================
// Main Configuration
// ============================================

// Config is the top-level application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Circuit     CircuitConfig     `mapstructure:"circuit"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
	Degradation DegradationConfig `mapstructure:"degradation"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// ============================================
// App Configuration
// ============================================

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	BuildTime   string `mapstructure:"build_time"`
	GitCommit   string `mapstructure:"git_commit"`
}

// IsDevelopment returns true when running in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true when running in the production environment.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ============================================
// Server Configuration
// ============================================

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the host:port the server binds to.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================
// Database Configuration
// ============================================

// DatabaseConfig holds the two PostgreSQL pools: the primary takes every
// write and locked read, the replica serves read-side lookups.
type DatabaseConfig struct {
	Primary PostgresConfig `mapstructure:"primary"`
	Replica PostgresConfig `mapstructure:"replica"`
}

// ReplicaOrPrimary returns the replica settings, falling back to the
// primary when no replica host is configured (single-node deployments).
func (c *DatabaseConfig) ReplicaOrPrimary() PostgresConfig {
	if c.Replica.Host == "" {
		return c.Primary
	}
	return c.Replica
}

// PostgresConfig holds the settings for one PostgreSQL pool.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// DSN returns the PostgreSQL connection URL (used by migrations).
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// ============================================
// Redis Configuration
// ============================================

// RedisConfig holds the wallet cache connection settings.
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the host:port of the Redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================
// NATS Configuration
// ============================================

// NATSConfig holds the JetStream event log settings.
type NATSConfig struct {
	URL             string        `mapstructure:"url"`
	StreamName      string        `mapstructure:"stream_name"`
	SubjectPrefix   string        `mapstructure:"subject_prefix"`
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
}

// ============================================
// Cache Configuration
// ============================================

// CacheConfig controls the read-side wallet cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ============================================
// Retry Configuration
// ============================================

// RetryConfig holds the two retry budgets: optimistic-lock conflicts are
// cheap and common, transient I/O failures are slower and rarer.
type RetryConfig struct {
	OptimisticLock RetryPolicyConfig `mapstructure:"optimistic_lock"`
	Transient      RetryPolicyConfig `mapstructure:"transient"`
}

// RetryPolicyConfig parameterizes one exponential backoff policy.
type RetryPolicyConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// ============================================
// Circuit Breaker Configuration
// ============================================

// CircuitConfig holds the per-dependency circuit breaker settings.
type CircuitConfig struct {
	Cache    BreakerConfig `mapstructure:"cache"`
	EventLog BreakerConfig `mapstructure:"eventlog"`
}

// BreakerConfig parameterizes one circuit breaker.
type BreakerConfig struct {
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	CoolDown     time.Duration `mapstructure:"cool_down"`
	MaxHalfOpen  uint32        `mapstructure:"max_half_open"`
}

// ============================================
// Outbox Configuration
// ============================================

// OutboxConfig controls the background outbox publisher.
type OutboxConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	FailureCycles int           `mapstructure:"failure_cycles"`
}

// ============================================
// Degradation Configuration
// ============================================

// DegradationConfig controls the degradation manager's probes and
// thresholds.
type DegradationConfig struct {
	ReadOnlyAutoExit  bool          `mapstructure:"read_only_auto_exit"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	RecoveryThreshold int           `mapstructure:"recovery_threshold"`
	ProbeInterval     time.Duration `mapstructure:"probe_interval"`
}

// ============================================
// Rate Limit Configuration
// ============================================

// RateLimitConfig holds the per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
	BurstSize          int           `mapstructure:"burst_size"`
	FinancialOpsPerMin int           `mapstructure:"financial_ops_per_min"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
}

// ============================================
// CORS Configuration
// ============================================

// CORSConfig holds the CORS settings.
type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// ============================================
// Log Configuration
// ============================================

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr
}

// ============================================
// Tracing Configuration
// ============================================

// TracingConfig holds the OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP HTTP endpoint, host:port
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// ============================================
// Configuration Loading
// ============================================

// Load reads configuration from a file and environment variables.
//
// configPath is the directory holding the config file (e.g. "configs"),
// configName the file name without extension (e.g. "config").
//
// Supported formats: yaml, json, toml
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/walletcore")

	v.SetEnvPrefix("WALLETCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file found: fall back to defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("WALLETCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default for every known key.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "walletcore")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults. The replica host defaults to empty, which routes
	// read-side queries to the primary.
	v.SetDefault("database.primary.host", "localhost")
	v.SetDefault("database.primary.port", 5432)
	v.SetDefault("database.primary.user", "postgres")
	v.SetDefault("database.primary.password", "postgres")
	v.SetDefault("database.primary.database", "walletcore")
	v.SetDefault("database.primary.ssl_mode", "disable")
	v.SetDefault("database.primary.max_connections", 25)
	v.SetDefault("database.primary.min_connections", 5)
	v.SetDefault("database.primary.max_conn_lifetime", "1h")
	v.SetDefault("database.primary.max_conn_idle_time", "30m")
	v.SetDefault("database.primary.connect_timeout", "5s")
	v.SetDefault("database.replica.host", "")
	v.SetDefault("database.replica.port", 5432)
	v.SetDefault("database.replica.user", "postgres")
	v.SetDefault("database.replica.password", "postgres")
	v.SetDefault("database.replica.database", "walletcore")
	v.SetDefault("database.replica.ssl_mode", "disable")
	v.SetDefault("database.replica.max_connections", 10)
	v.SetDefault("database.replica.min_connections", 2)
	v.SetDefault("database.replica.max_conn_lifetime", "1h")
	v.SetDefault("database.replica.max_conn_idle_time", "30m")
	v.SetDefault("database.replica.connect_timeout", "5s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "WALLET_EVENTS")
	v.SetDefault("nats.subject_prefix", "wallet.events")
	v.SetDefault("nats.duplicate_window", "2m")

	// Cache defaults
	v.SetDefault("cache.ttl", "5m")

	// Retry defaults
	v.SetDefault("retry.optimistic_lock.max_attempts", 5)
	v.SetDefault("retry.optimistic_lock.initial_backoff", "25ms")
	v.SetDefault("retry.transient.max_attempts", 3)
	v.SetDefault("retry.transient.initial_backoff", "100ms")

	// Circuit breaker defaults
	v.SetDefault("circuit.cache.failure_ratio", 0.5)
	v.SetDefault("circuit.cache.min_requests", 10)
	v.SetDefault("circuit.cache.cool_down", "30s")
	v.SetDefault("circuit.cache.max_half_open", 3)
	v.SetDefault("circuit.eventlog.failure_ratio", 0.5)
	v.SetDefault("circuit.eventlog.min_requests", 10)
	v.SetDefault("circuit.eventlog.cool_down", "30s")
	v.SetDefault("circuit.eventlog.max_half_open", 3)

	// Outbox defaults
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.failure_cycles", 3)

	// Degradation defaults
	v.SetDefault("degradation.read_only_auto_exit", true)
	v.SetDefault("degradation.failure_threshold", 3)
	v.SetDefault("degradation.recovery_threshold", 2)
	v.SetDefault("degradation.probe_interval", "5s")

	// Rate Limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 100)
	v.SetDefault("rate_limit.burst_size", 20)
	v.SetDefault("rate_limit.financial_ops_per_min", 30)
	v.SetDefault("rate_limit.cleanup_interval", "1m")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", "12h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// bindEnvVars binds the short env var aliases used in container
// deployments alongside the canonical WALLETCORE_* names.
func bindEnvVars(v *viper.Viper) {
	// Database
	_ = v.BindEnv("database.primary.host", "WALLETCORE_DATABASE_PRIMARY_HOST", "DB_HOST")
	_ = v.BindEnv("database.primary.port", "WALLETCORE_DATABASE_PRIMARY_PORT", "DB_PORT")
	_ = v.BindEnv("database.primary.user", "WALLETCORE_DATABASE_PRIMARY_USER", "DB_USER")
	_ = v.BindEnv("database.primary.password", "WALLETCORE_DATABASE_PRIMARY_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.primary.database", "WALLETCORE_DATABASE_PRIMARY_DATABASE", "DB_NAME")
	_ = v.BindEnv("database.replica.host", "WALLETCORE_DATABASE_REPLICA_HOST", "DB_REPLICA_HOST")

	// Redis
	_ = v.BindEnv("redis.host", "WALLETCORE_REDIS_HOST", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "WALLETCORE_REDIS_PORT", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "WALLETCORE_REDIS_PASSWORD", "REDIS_PASSWORD")

	// NATS
	_ = v.BindEnv("nats.url", "WALLETCORE_NATS_URL", "NATS_URL")

	// Server
	_ = v.BindEnv("server.port", "WALLETCORE_SERVER_PORT", "PORT")

	// App
	_ = v.BindEnv("app.environment", "WALLETCORE_APP_ENVIRONMENT", "ENVIRONMENT", "ENV")
}

// ============================================
// Configuration Validation
// ============================================

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Database.Primary.Host == "" {
		return fmt.Errorf("database primary host is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Retry.OptimisticLock.MaxAttempts < 1 {
		return fmt.Errorf("retry.optimistic_lock.max_attempts must be at least 1")
	}
	if c.Retry.Transient.MaxAttempts < 1 {
		return fmt.Errorf("retry.transient.max_attempts must be at least 1")
	}

	if c.Circuit.Cache.FailureRatio <= 0 || c.Circuit.Cache.FailureRatio > 1 {
		return fmt.Errorf("circuit.cache.failure_ratio must be in (0, 1]: %v", c.Circuit.Cache.FailureRatio)
	}
	if c.Circuit.EventLog.FailureRatio <= 0 || c.Circuit.EventLog.FailureRatio > 1 {
		return fmt.Errorf("circuit.eventlog.failure_ratio must be in (0, 1]: %v", c.Circuit.EventLog.FailureRatio)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive: %v", c.Cache.TTL)
	}

	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox.poll_interval must be positive: %v", c.Outbox.PollInterval)
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox.batch_size must be at least 1: %d", c.Outbox.BatchSize)
	}

	// Wildcard origins with credentials is rejected by browsers; refuse it
	// up front instead of serving broken CORS headers.
	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("cors: allow_credentials cannot be combined with a wildcard origin")
			}
		}
	}

	if c.App.IsProduction() {
		if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint is required when tracing is enabled")
		}
	}

	return nil
}

// ============================================
// Development Helpers
// ============================================

// Development returns a configuration suitable for local development.
func Development() *Config {
	return &Config{
		App: AppConfig{
			Name:        "walletcore",
			Version:     "dev",
			Environment: "development",
			Debug:       true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Primary: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "postgres",
				Password:        "postgres",
				Database:        "walletcore",
				SSLMode:         "disable",
				MaxConnections:  10,
				MinConnections:  2,
				MaxConnLifetime: time.Hour,
				MaxConnIdleTime: 30 * time.Minute,
				ConnectTimeout:  5 * time.Second,
			},
			// Replica host left empty: reads fall back to the primary.
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			DB:           0,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		NATS: NATSConfig{
			URL:             "nats://localhost:4222",
			StreamName:      "WALLET_EVENTS",
			SubjectPrefix:   "wallet.events",
			DuplicateWindow: 2 * time.Minute,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Retry: RetryConfig{
			OptimisticLock: RetryPolicyConfig{
				MaxAttempts:    5,
				InitialBackoff: 25 * time.Millisecond,
			},
			Transient: RetryPolicyConfig{
				MaxAttempts:    3,
				InitialBackoff: 100 * time.Millisecond,
			},
		},
		Circuit: CircuitConfig{
			Cache: BreakerConfig{
				FailureRatio: 0.5,
				MinRequests:  10,
				CoolDown:     30 * time.Second,
				MaxHalfOpen:  3,
			},
			EventLog: BreakerConfig{
				FailureRatio: 0.5,
				MinRequests:  10,
				CoolDown:     30 * time.Second,
				MaxHalfOpen:  3,
			},
		},
		Outbox: OutboxConfig{
			PollInterval:  2 * time.Second,
			BatchSize:     100,
			FailureCycles: 3,
		},
		Degradation: DegradationConfig{
			ReadOnlyAutoExit:  true,
			FailureThreshold:  3,
			RecoveryThreshold: 2,
			ProbeInterval:     5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			RequestsPerMinute:  100,
			BurstSize:          20,
			FinancialOpsPerMin: 30,
			CleanupInterval:    time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1.0,
		},
	}
}

// Test returns a configuration suitable for tests.
func Test() *Config {
	cfg := Development()
	cfg.App.Environment = "test"
	cfg.Database.Primary.Database = "walletcore_test"
	cfg.Database.Replica.Database = "walletcore_test"
	cfg.Log.Level = "error" // less noise in tests
	return cfg
}
