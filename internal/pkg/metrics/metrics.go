// Package metrics holds the Prometheus instruments shared across layers.
// HTTP-level metrics live with the gin middleware; everything that happens
// behind the handlers (bus, outbox, retries, breakers, degradation) is
// recorded here.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bus metrics
var (
	busDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "bus",
			Name:      "dispatches_total",
			Help:      "Total number of dispatched commands and queries",
		},
		[]string{"kind", "name", "outcome"},
	)

	busDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walletcore",
			Subsystem: "bus",
			Name:      "dispatch_duration_seconds",
			Help:      "Handler latency per command or query",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"kind", "name"},
	)

	busErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "bus",
			Name:      "errors_total",
			Help:      "Dispatches that failed inside the bus before reaching a handler",
		},
		[]string{"kind"},
	)
)

// Outbox metrics
var (
	outboxEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows by lifecycle stage",
		},
		[]string{"stage"}, // created, published, failed
	)

	outboxPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletcore",
			Subsystem: "outbox",
			Name:      "publish_duration_seconds",
			Help:      "Latency of publishing one outbox batch",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	outboxDeliveryLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletcore",
			Subsystem: "outbox",
			Name:      "delivery_lag_seconds",
			Help:      "Time from outbox row creation to event log acknowledgement",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)
)

// Resilience metrics
var (
	retryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Retry attempts after a retryable failure",
		},
		[]string{"policy", "operation", "code"},
	)

	retryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Operations that failed after all retry attempts",
		},
		[]string{"policy", "operation"},
	)

	breakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "breaker",
			Name:      "state_changes_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "walletcore",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Current breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// Database pool metrics
var (
	dbPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "walletcore",
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Connections in the pgx pool by state",
		},
		[]string{"pool", "state"},
	)
)

// Degradation metrics
var (
	degradationActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "walletcore",
			Subsystem: "degradation",
			Name:      "mode_active",
			Help:      "Whether a degradation mode is currently active (0/1)",
		},
		[]string{"mode"},
	)

	healthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletcore",
			Subsystem: "degradation",
			Name:      "health_score",
			Help:      "Aggregate service health from 0 (fully degraded) to 100",
		},
	)
)

// Business metrics
var (
	walletsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "business",
			Name:      "wallets_created_total",
			Help:      "Total number of wallets created",
		},
	)

	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "business",
			Name:      "transactions_total",
			Help:      "Committed ledger rows by type",
		},
		[]string{"type"},
	)

	writesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletcore",
			Subsystem: "business",
			Name:      "writes_in_flight",
			Help:      "Write commands currently executing",
		},
	)
)

// RecordBusDispatch records one command or query dispatch.
func RecordBusDispatch(kind, name string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	busDispatchesTotal.WithLabelValues(kind, name, outcome).Inc()
	busDispatchDuration.WithLabelValues(kind, name).Observe(duration.Seconds())
}

// RecordBusError counts a dispatch that failed inside the bus itself,
// before any handler ran. Handler failures show up in the outcome label
// of RecordBusDispatch instead.
func RecordBusError(kind string) {
	busErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordOutboxCreated counts rows written to the outbox.
func RecordOutboxCreated(n int) {
	outboxEventsTotal.WithLabelValues("created").Add(float64(n))
}

// RecordOutboxPublished counts rows handed to the event log.
func RecordOutboxPublished() {
	outboxEventsTotal.WithLabelValues("published").Inc()
}

// RecordOutboxFailed counts publish attempts that failed.
func RecordOutboxFailed() {
	outboxEventsTotal.WithLabelValues("failed").Inc()
}

// ObserveOutboxBatch records the latency of one publishing pass.
func ObserveOutboxBatch(duration time.Duration) {
	outboxPublishDuration.Observe(duration.Seconds())
}

// ObserveOutboxDeliveryLag records how long a row waited between creation
// and event log acknowledgement.
func ObserveOutboxDeliveryLag(lag time.Duration) {
	outboxDeliveryLag.Observe(lag.Seconds())
}

// RecordRetryAttempt counts one re-execution under the named policy.
func RecordRetryAttempt(policy, operation, code string) {
	retryAttemptsTotal.WithLabelValues(policy, operation, code).Inc()
}

// RecordRetryExhausted counts an operation that gave up.
func RecordRetryExhausted(policy, operation string) {
	retryExhaustedTotal.WithLabelValues(policy, operation).Inc()
}

// RecordBreakerStateChange records a breaker transition and its new state.
func RecordBreakerStateChange(name, from, to string, state int) {
	breakerStateChangesTotal.WithLabelValues(name, from, to).Inc()
	breakerState.WithLabelValues(name).Set(float64(state))
}

// SetPoolConnections exports a connection pool snapshot.
func SetPoolConnections(pool string, total, idle, acquired, max int32) {
	dbPoolConnections.WithLabelValues(pool, "total").Set(float64(total))
	dbPoolConnections.WithLabelValues(pool, "idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues(pool, "acquired").Set(float64(acquired))
	dbPoolConnections.WithLabelValues(pool, "max").Set(float64(max))
}

// SetDegradationMode flips the gauge for one degradation mode.
func SetDegradationMode(mode string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	degradationActive.WithLabelValues(mode).Set(v)
}

// SetHealthScore publishes the aggregate health score.
func SetHealthScore(score int) {
	healthScore.Set(float64(score))
}

// RecordWalletCreated counts a new wallet.
func RecordWalletCreated() {
	walletsCreatedTotal.Inc()
}

// RecordTransaction counts a committed ledger row.
func RecordTransaction(txType string) {
	transactionsTotal.WithLabelValues(txType).Inc()
}

// WriteStarted marks a write command entering its handler.
func WriteStarted() {
	writesInFlight.Inc()
}

// WriteFinished marks a write command leaving its handler.
func WriteFinished() {
	writesInFlight.Dec()
}
