// Package container is the composition root: it builds every dependency,
// wires the command/query bus, and owns startup and shutdown order.
package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Haleralex/walletcore/internal/adapters/http"
	"github.com/Haleralex/walletcore/internal/application/bus"
	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/outbox"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/application/usecases/wallet"
	"github.com/Haleralex/walletcore/internal/config"
	"github.com/Haleralex/walletcore/internal/infrastructure/cache/redis"
	"github.com/Haleralex/walletcore/internal/infrastructure/eventlog/nats"
	"github.com/Haleralex/walletcore/internal/infrastructure/observability"
	"github.com/Haleralex/walletcore/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/walletcore/internal/infrastructure/resilience"
	"github.com/Haleralex/walletcore/internal/pkg/logger"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// ============================================
// Container
// ============================================

// Container holds the application's dependencies.
type Container struct {
	config *config.Config
	logger *slog.Logger

	// Infrastructure
	primaryPool *pgxpool.Pool
	replicaPool *pgxpool.Pool
	redisClient *goredis.Client
	natsLog     *nats.EventLog

	// Resilience
	degradation     *resilience.Manager
	optimisticRetry *resilience.RetryPolicy
	transientRetry  *resilience.RetryPolicy
	cacheBreaker    *resilience.CacheBreaker
	eventLogBreaker *resilience.EventLogBreaker

	// Persistence
	walletRepo          *postgres.WalletRepository
	walletReadRepo      *postgres.WalletReadRepository
	transactionRepo     *postgres.TransactionRepository
	transactionReadRepo *postgres.TransactionRepository
	outboxRepo          *postgres.OutboxRepository
	uow                 ports.UnitOfWork

	// Application
	eventStore *outbox.Store
	publisher  *outbox.Publisher
	bus        *bus.Bus

	// HTTP
	httpServer *http.Server

	// Lifecycle
	tracingShutdown  func(context.Context) error
	watchCancel      context.CancelFunc
	publisherStarted bool
}

// New creates a container for the configuration. Call Initialize before
// use.
func New(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// ============================================
// Initialization
// ============================================

// Initialize builds every dependency. Dependencies that need a network
// connection (PostgreSQL, Redis, NATS) are verified here so a
// misconfigured deployment fails at boot, not on the first request.
// Outages after boot are the degradation manager's job.
func (c *Container) Initialize(ctx context.Context) error {
	if c.logger == nil {
		c.logger = c.initLogger()
	}
	c.logger.Info("Initializing application container...")

	// 1. Tracing
	if err := c.initTracing(ctx); err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	c.logger.Info("Tracing configured", slog.Bool("enabled", c.config.Tracing.Enabled))

	// 2. Databases
	if err := c.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database connected",
		slog.Bool("replica", c.replicaPool != c.primaryPool),
	)

	// 3. Degradation manager and retry policies
	c.initResilience()
	c.logger.Info("Resilience policies initialized")

	// 4. Wallet cache
	if err := c.initCache(ctx); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.logger.Info("Cache connected")

	// 5. Event log
	if err := c.initEventLog(ctx); err != nil {
		return fmt.Errorf("failed to initialize event log: %w", err)
	}
	c.logger.Info("Event log connected", slog.String("stream", c.config.NATS.StreamName))

	// 6. Repositories
	c.initRepositories()
	c.logger.Info("Repositories initialized")

	// 7. Use cases and bus
	c.initBus()
	c.logger.Info("Command bus initialized")

	// 8. Outbox publisher
	c.initPublisher()
	c.logger.Info("Outbox publisher initialized")

	// 9. HTTP server
	c.initHTTPServer()
	c.logger.Info("HTTP server initialized")

	c.logger.Info("Container initialization complete")
	return nil
}

// initLogger builds the process logger and installs it as the slog
// default.
func (c *Container) initLogger() *slog.Logger {
	var output io.Writer = os.Stdout
	if c.config.Log.Output == "stderr" {
		output = os.Stderr
	}

	log := logger.New(&logger.Config{
		Level:     c.config.Log.Level,
		Format:    c.config.Log.Format,
		Output:    output,
		AddSource: c.config.App.Debug,
	})
	slog.SetDefault(log)

	return log
}

// initTracing installs the OTLP trace exporter. Disabled tracing yields a
// no-op shutdown.
func (c *Container) initTracing(ctx context.Context) error {
	shutdown, err := observability.SetupTracing(ctx, c.config.Tracing, c.config.App, c.logger)
	if err != nil {
		return err
	}
	c.tracingShutdown = shutdown
	return nil
}

// initDatabases connects the primary pool and, when configured, the
// replica pool. Without a replica host both roles share the primary pool.
func (c *Container) initDatabases(ctx context.Context) error {
	primary, err := postgres.NewConnectionPool(ctx, postgresPoolConfig(c.config.Database.Primary))
	if err != nil {
		return fmt.Errorf("primary pool: %w", err)
	}
	c.primaryPool = primary

	if c.config.Database.Replica.Host == "" {
		c.replicaPool = primary
		return nil
	}

	replica, err := postgres.NewConnectionPool(ctx, postgresPoolConfig(c.config.Database.Replica))
	if err != nil {
		primary.Close()
		return fmt.Errorf("replica pool: %w", err)
	}
	c.replicaPool = replica
	return nil
}

// initResilience builds the degradation manager and the two retry
// policies. Runs before the cache and event log so their breakers can
// report into the manager.
func (c *Container) initResilience() {
	c.degradation = resilience.NewManager(degradationSettings(c.config.Degradation), c.logger)
	c.optimisticRetry = resilience.NewOptimisticLockPolicy(
		retryPolicyConfig(c.config.Retry.OptimisticLock, resilience.DefaultOptimisticRetryConfig()),
	)
	c.transientRetry = resilience.NewTransientPolicy(
		retryPolicyConfig(c.config.Retry.Transient, resilience.DefaultTransientRetryConfig()),
	)
}

// initCache connects Redis and wraps the wallet cache in its circuit
// breaker.
func (c *Container) initCache(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redisClientConfig(c.config.Redis))
	if err != nil {
		return err
	}
	c.redisClient = client

	walletCache := redis.NewWalletCache(client, c.config.Cache.TTL)
	c.cacheBreaker = resilience.NewCacheBreaker(
		walletCache,
		breakerSettings(c.config.Circuit.Cache),
		c.logger,
		c.degradation,
	)
	return nil
}

// initEventLog connects the JetStream event log and wraps it in its
// circuit breaker.
func (c *Container) initEventLog(ctx context.Context) error {
	eventLog, err := nats.NewEventLog(ctx, natsLogConfig(c.config.NATS))
	if err != nil {
		return err
	}
	c.natsLog = eventLog

	c.eventLogBreaker = resilience.NewEventLogBreaker(
		eventLog,
		breakerSettings(c.config.Circuit.EventLog),
		c.logger,
	)
	return nil
}

// initRepositories builds the repositories, the unit of work, and the
// outbox event store. Writes and locked reads go to the primary pool,
// read-side lookups to the replica.
func (c *Container) initRepositories() {
	c.walletRepo = postgres.NewWalletRepository(c.primaryPool)
	c.walletReadRepo = postgres.NewWalletReadRepository(c.replicaPool)
	c.transactionRepo = postgres.NewTransactionRepository(c.primaryPool)
	c.transactionReadRepo = postgres.NewTransactionRepository(c.replicaPool)
	c.outboxRepo = postgres.NewOutboxRepository(c.primaryPool)

	c.uow = postgres.NewUnitOfWork(c.primaryPool)
	c.eventStore = outbox.NewStore(c.outboxRepo)
}

// initBus builds the use cases and registers them on the command/query
// bus behind the resilience decorators.
func (c *Container) initBus() {
	createUC := wallet.NewCreateWalletUseCase(c.walletRepo, c.eventStore, c.degradation, c.uow)
	depositUC := wallet.NewDepositUseCase(c.walletRepo, c.transactionRepo, c.eventStore, c.cacheBreaker, c.degradation, c.uow)
	withdrawUC := wallet.NewWithdrawUseCase(c.walletRepo, c.transactionRepo, c.eventStore, c.cacheBreaker, c.degradation, c.uow)
	transferUC := wallet.NewTransferUseCase(c.walletRepo, c.transactionRepo, c.eventStore, c.cacheBreaker, c.degradation, c.uow)
	getUC := wallet.NewGetWalletUseCase(c.walletReadRepo, c.cacheBreaker, c.degradation)
	historyUC := wallet.NewHistoricalBalanceUseCase(c.walletReadRepo, c.transactionReadRepo)

	b := bus.New()

	b.RegisterCommand(dtos.CommandCreateWallet, c.guardCommand(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return createUC.Execute(ctx, cmd.(dtos.CreateWalletCommand))
	}))
	b.RegisterCommand(dtos.CommandDeposit, c.guardCommand(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return depositUC.Execute(ctx, cmd.(dtos.DepositCommand))
	}))
	b.RegisterCommand(dtos.CommandWithdraw, c.guardCommand(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return withdrawUC.Execute(ctx, cmd.(dtos.WithdrawCommand))
	}))
	b.RegisterCommand(dtos.CommandTransfer, c.guardCommand(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return transferUC.Execute(ctx, cmd.(dtos.TransferCommand))
	}))

	b.RegisterQuery(dtos.QueryGetWallet, c.guardQuery(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return getUC.Execute(ctx, q.(dtos.GetWalletQuery))
	}))
	b.RegisterQuery(dtos.QueryHistoricalBalance, c.guardQuery(func(ctx context.Context, q bus.Query) (interface{}, error) {
		return historyUC.Execute(ctx, q.(dtos.HistoricalBalanceQuery))
	}))

	c.bus = b
}

// guardCommand stacks the write-side decorators: optimistic-lock retries
// innermost, transient retries around them, degradation bookkeeping on
// the final outcome.
func (c *Container) guardCommand(h bus.CommandHandler) bus.CommandHandler {
	h = resilience.RetryCommand(c.optimisticRetry, h)
	h = resilience.RetryCommand(c.transientRetry, h)
	return resilience.TrackWrites(c.degradation, h)
}

// guardQuery retries reads on transient failures.
func (c *Container) guardQuery(h bus.QueryHandler) bus.QueryHandler {
	return resilience.RetryQuery(c.transientRetry, h)
}

// initPublisher builds the background outbox publisher. Run starts it.
func (c *Container) initPublisher() {
	c.publisher = outbox.NewPublisher(
		c.uow,
		c.outboxRepo,
		c.eventLogBreaker,
		c.degradation,
		c.logger,
		publisherSettings(c.config.Outbox),
	)
}

// initHTTPServer builds the router and the HTTP server around it.
func (c *Container) initHTTPServer() {
	routerConfig := &http.RouterConfig{
		Logger:                c.logger,
		ServiceName:           c.config.App.Name,
		Version:               c.config.App.Version,
		BuildTime:             c.config.App.BuildTime,
		Environment:           c.config.App.Environment,
		AllowedOrigins:        c.config.CORS.AllowedOrigins,
		RateLimitEnabled:      c.config.RateLimit.Enabled,
		RequestsPerMinute:     c.config.RateLimit.RequestsPerMinute,
		FinancialOpsPerMinute: c.config.RateLimit.FinancialOpsPerMin,
		TracingEnabled:        c.config.Tracing.Enabled,
	}

	router := http.NewRouterBuilder(routerConfig).
		WithBus(c.bus).
		WithHealthProbes(&http.HealthProbes{
			Primary:  c.primaryPool,
			Replica:  c.replicaPool,
			Cache:    c.cacheBreaker,
			EventLog: c.eventLogBreaker,
		}).
		WithDegradation(c.degradation).
		WithOutboxDrainer(c.publisher).
		Build()

	serverConfig := &http.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            fmt.Sprintf("%d", c.config.Server.Port),
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		IdleTimeout:     c.config.Server.IdleTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Logger:          c.logger,
	}

	c.httpServer = http.NewServer(serverConfig, router)
}

// ============================================
// Configuration Mapping
// ============================================

func postgresPoolConfig(pc config.PostgresConfig) postgres.Config {
	return postgres.Config{
		Host:            pc.Host,
		Port:            pc.Port,
		Database:        pc.Database,
		User:            pc.User,
		Password:        pc.Password,
		SSLMode:         pc.SSLMode,
		MaxConns:        pc.MaxConnections,
		MinConns:        pc.MinConnections,
		MaxConnLifetime: pc.MaxConnLifetime,
		MaxConnIdleTime: pc.MaxConnIdleTime,
		ConnectTimeout:  pc.ConnectTimeout,
	}
}

func redisClientConfig(rc config.RedisConfig) redis.Config {
	return redis.Config{
		Host:         rc.Host,
		Port:         rc.Port,
		Password:     rc.Password,
		DB:           rc.DB,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}
}

func natsLogConfig(nc config.NATSConfig) nats.Config {
	return nats.Config{
		URL:             nc.URL,
		StreamName:      nc.StreamName,
		SubjectPrefix:   nc.SubjectPrefix,
		DuplicateWindow: nc.DuplicateWindow,
	}
}

// retryPolicyConfig fills a retry policy from configuration, keeping the
// fallback for unset fields. The wait cap tracks the configured base so
// one knob tunes the whole policy.
func retryPolicyConfig(pc config.RetryPolicyConfig, fallback resilience.RetryConfig) resilience.RetryConfig {
	out := fallback
	if pc.MaxAttempts > 0 {
		out.MaxAttempts = pc.MaxAttempts
	}
	if pc.InitialBackoff > 0 {
		out.InitialWait = pc.InitialBackoff
		out.MaxWait = 10 * pc.InitialBackoff
	}
	return out
}

func breakerSettings(bc config.BreakerConfig) resilience.BreakerConfig {
	out := resilience.DefaultBreakerConfig()
	if bc.FailureRatio > 0 {
		out.FailureRatio = bc.FailureRatio
	}
	if bc.MinRequests > 0 {
		out.MinRequests = bc.MinRequests
	}
	if bc.CoolDown > 0 {
		out.OpenTimeout = bc.CoolDown
	}
	if bc.MaxHalfOpen > 0 {
		out.MaxHalfOpen = bc.MaxHalfOpen
	}
	return out
}

func degradationSettings(dc config.DegradationConfig) resilience.DegradationConfig {
	out := resilience.DefaultDegradationConfig()
	out.ReadOnlyAutoExit = dc.ReadOnlyAutoExit
	if dc.FailureThreshold > 0 {
		out.FailureThreshold = dc.FailureThreshold
	}
	if dc.RecoveryThreshold > 0 {
		out.RecoveryThreshold = dc.RecoveryThreshold
	}
	if dc.ProbeInterval > 0 {
		out.ProbeInterval = dc.ProbeInterval
	}
	return out
}

func publisherSettings(oc config.OutboxConfig) outbox.PublisherConfig {
	return outbox.PublisherConfig{
		PollInterval:  oc.PollInterval,
		BatchSize:     oc.BatchSize,
		FailureCycles: oc.FailureCycles,
	}
}

// ============================================
// Getters
// ============================================

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the process logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Bus returns the command/query bus.
func (c *Container) Bus() *bus.Bus {
	return c.bus
}

// PrimaryPool returns the write-side connection pool.
func (c *Container) PrimaryPool() *pgxpool.Pool {
	return c.primaryPool
}

// ReplicaPool returns the read-side connection pool. Same as the primary
// when no replica is configured.
func (c *Container) ReplicaPool() *pgxpool.Pool {
	return c.replicaPool
}

// Cache returns the breaker-wrapped wallet cache.
func (c *Container) Cache() ports.WalletCache {
	return c.cacheBreaker
}

// EventLog returns the breaker-wrapped event log.
func (c *Container) EventLog() ports.EventLog {
	return c.eventLogBreaker
}

// Degradation returns the degradation manager.
func (c *Container) Degradation() *resilience.Manager {
	return c.degradation
}

// Publisher returns the outbox publisher.
func (c *Container) Publisher() *outbox.Publisher {
	return c.publisher
}

// UnitOfWork returns the transaction boundary.
func (c *Container) UnitOfWork() ports.UnitOfWork {
	return c.uow
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *http.Server {
	return c.httpServer
}

// ============================================
// Run
// ============================================

// Run starts the background workers and serves HTTP until a shutdown
// signal arrives.
func (c *Container) Run() error {
	watchCtx, cancel := context.WithCancel(context.Background())
	c.watchCancel = cancel

	// The watcher's probe gets its own timeout; a hung connection must
	// not stall the probe loop.
	go c.degradation.WatchPrimary(watchCtx, func(ctx context.Context) error {
		return postgres.HealthCheck(ctx, c.primaryPool)
	})
	go c.degradation.WatchCache(watchCtx, c.cacheBreaker.Ping)
	go c.samplePoolStats(watchCtx)

	c.publisher.Start()
	c.publisherStarted = true

	c.logger.Info("Starting walletcore API server",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
		slog.String("address", c.config.Server.Address()),
	)

	return c.httpServer.Run()
}

// samplePoolStats exports connection pool gauges until ctx is done.
func (c *Container) samplePoolStats(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		exportPoolStats("primary", c.primaryPool)
		if c.replicaPool != c.primaryPool {
			exportPoolStats("replica", c.replicaPool)
		}
	}
}

func exportPoolStats(name string, pool *pgxpool.Pool) {
	s := postgres.Stats(pool)
	metrics.SetPoolConnections(name, s.Total, s.Idle, s.Acquired, s.Max)
}

// ============================================
// Shutdown
// ============================================

// Shutdown stops everything in reverse dependency order: HTTP first so no
// new work arrives, then workers, then connections. Pools close last
// since draining work may still need them.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	var errs []error

	// 1. HTTP server
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// 2. Background workers
	if c.watchCancel != nil {
		c.watchCancel()
	}
	if c.publisherStarted {
		c.publisher.Stop()
	}

	// 3. Tracing exporter
	if c.tracingShutdown != nil {
		if err := c.tracingShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	// 4. Event log
	if c.natsLog != nil {
		if err := c.natsLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event log close: %w", err))
		}
	}

	// 5. Cache
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	// 6. Database pools
	c.closePool(ctx, "primary", c.primaryPool)
	if c.replicaPool != c.primaryPool {
		c.closePool(ctx, "replica", c.replicaPool)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// closePool closes a pool, bounded by the shutdown context.
func (c *Container) closePool(ctx context.Context, name string, pool *pgxpool.Pool) {
	if pool == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		pool.Close()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Database pool closed", slog.String("pool", name))
	case <-ctx.Done():
		c.logger.Warn("Database pool close timeout", slog.String("pool", name))
	}
}

// ============================================
// Builder
// ============================================

// ContainerBuilder assembles a container with selected components
// replaced, for tests and embedded setups.
type ContainerBuilder struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	cache    ports.WalletCache
	eventLog ports.EventLog
}

// NewBuilder creates a builder.
func NewBuilder(cfg *config.Config) *ContainerBuilder {
	return &ContainerBuilder{
		cfg: cfg,
	}
}

// WithLogger sets a custom logger.
func (b *ContainerBuilder) WithLogger(logger *slog.Logger) *ContainerBuilder {
	b.logger = logger
	return b
}

// WithPool sets a ready connection pool, used for both primary and
// replica roles.
func (b *ContainerBuilder) WithPool(pool *pgxpool.Pool) *ContainerBuilder {
	b.pool = pool
	return b
}

// WithCache sets a custom wallet cache. The breaker still wraps it.
func (b *ContainerBuilder) WithCache(cache ports.WalletCache) *ContainerBuilder {
	b.cache = cache
	return b
}

// WithEventLog sets a custom event log. The breaker still wraps it.
func (b *ContainerBuilder) WithEventLog(eventLog ports.EventLog) *ContainerBuilder {
	b.eventLog = eventLog
	return b
}

// Build assembles the container, initializing whatever was not provided.
func (b *ContainerBuilder) Build(ctx context.Context) (*Container, error) {
	c := New(b.cfg)

	if b.logger != nil {
		c.logger = b.logger
	} else {
		c.logger = c.initLogger()
	}

	if err := c.initTracing(ctx); err != nil {
		return nil, err
	}

	if b.pool != nil {
		c.primaryPool = b.pool
		c.replicaPool = b.pool
	} else {
		if err := c.initDatabases(ctx); err != nil {
			return nil, err
		}
	}

	c.initResilience()

	if b.cache != nil {
		c.cacheBreaker = resilience.NewCacheBreaker(
			b.cache,
			breakerSettings(b.cfg.Circuit.Cache),
			c.logger,
			c.degradation,
		)
	} else {
		if err := c.initCache(ctx); err != nil {
			return nil, err
		}
	}

	if b.eventLog != nil {
		c.eventLogBreaker = resilience.NewEventLogBreaker(
			b.eventLog,
			breakerSettings(b.cfg.Circuit.EventLog),
			c.logger,
		)
	} else {
		if err := c.initEventLog(ctx); err != nil {
			return nil, err
		}
	}

	c.initRepositories()
	c.initBus()
	c.initPublisher()
	c.initHTTPServer()

	return c, nil
}
