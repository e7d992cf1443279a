package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Haleralex/walletcore/internal/application/bus"
	"github.com/Haleralex/walletcore/internal/application/ports"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Degradation mode labels used on the metrics gauges.
const (
	modeReadOnly        = "read_only"
	modeCacheBypass     = "cache_bypass"
	modeEventProcessing = "event_processing"
)

// Health score weights. All three flags active scores zero.
const (
	weightReadOnly        = 50
	weightCacheBypass     = 20
	weightEventProcessing = 30
)

// DegradationConfig tunes when the manager enters and leaves modes.
type DegradationConfig struct {
	// ReadOnlyAutoExit lets the primary probe clear read-only mode.
	// When false the mode stays until cleared manually.
	ReadOnlyAutoExit bool

	// FailureThreshold is how many consecutive primary probe failures or
	// write retry exhaustions enter read-only mode.
	FailureThreshold int

	// RecoveryThreshold is how many consecutive probe successes exit a
	// degraded mode.
	RecoveryThreshold int

	// ProbeInterval is the cadence of the watch loops.
	ProbeInterval time.Duration
}

// DefaultDegradationConfig returns the production defaults.
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		ReadOnlyAutoExit:  true,
		FailureThreshold:  3,
		RecoveryThreshold: 2,
		ProbeInterval:     5 * time.Second,
	}
}

// Manager is the process-wide degradation state machine. Three independent
// flags cover the three remote dependencies:
//
//   - read_only_mode: the primary database is unreliable. Writes are
//     rejected before they open a transaction; reads continue off the
//     replica.
//   - cache_bypass_mode: the cache is unreliable. Reads skip it entirely
//     instead of paying for calls a breaker would reject.
//   - event_processing_degraded: the outbox publisher cannot deliver.
//     Writes continue; the audit trail lags until the log recovers.
//
// Flags are atomics: the hot path reads them on every request.
type Manager struct {
	cfg    DegradationConfig
	logger *slog.Logger

	readOnly        atomic.Bool
	cacheBypass     atomic.Bool
	eventProcessing atomic.Bool

	// consecutive write retry exhaustions, reset by any write success
	mu               sync.Mutex
	writeExhaustions int
}

var (
	_ ports.DegradationState        = (*Manager)(nil)
	_ ports.EventProcessingReporter = (*Manager)(nil)
	_ CacheBypassSetter             = (*Manager)(nil)
)

// NewManager creates a degradation manager with all modes inactive.
func NewManager(cfg DegradationConfig, logger *slog.Logger) *Manager {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultDegradationConfig().FailureThreshold
	}
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = DefaultDegradationConfig().RecoveryThreshold
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultDegradationConfig().ProbeInterval
	}

	m := &Manager{cfg: cfg, logger: logger}
	metrics.SetHealthScore(m.HealthScore())
	return m
}

// ReadOnly reports whether writes are currently rejected.
func (m *Manager) ReadOnly() bool {
	return m.readOnly.Load()
}

// CacheBypass reports whether reads should skip the cache.
func (m *Manager) CacheBypass() bool {
	return m.cacheBypass.Load()
}

// EventProcessingDegraded reports whether outbox delivery is failing.
func (m *Manager) EventProcessingDegraded() bool {
	return m.eventProcessing.Load()
}

// SetReadOnly flips read-only mode. Idempotent; only transitions log and
// touch the gauges.
func (m *Manager) SetReadOnly(active bool, reason string) {
	if !m.readOnly.CompareAndSwap(!active, active) {
		return
	}

	metrics.SetDegradationMode(modeReadOnly, active)
	metrics.SetHealthScore(m.HealthScore())

	if active {
		m.logger.Warn("Entering read-only mode", slog.String("reason", reason))
	} else {
		m.mu.Lock()
		m.writeExhaustions = 0
		m.mu.Unlock()
		m.logger.Info("Leaving read-only mode", slog.String("reason", reason))
	}
}

// SetCacheBypass flips cache-bypass mode. Driven by the cache breaker on
// entry and by the cache probe on exit.
func (m *Manager) SetCacheBypass(active bool) {
	if !m.cacheBypass.CompareAndSwap(!active, active) {
		return
	}

	metrics.SetDegradationMode(modeCacheBypass, active)
	metrics.SetHealthScore(m.HealthScore())

	if active {
		m.logger.Warn("Entering cache-bypass mode")
	} else {
		m.logger.Info("Leaving cache-bypass mode")
	}
}

// SetEventProcessingDegraded flips the event-processing flag. Driven by
// the outbox publisher's cycle tracking.
func (m *Manager) SetEventProcessingDegraded(degraded bool) {
	if !m.eventProcessing.CompareAndSwap(!degraded, degraded) {
		return
	}

	metrics.SetDegradationMode(modeEventProcessing, degraded)
	metrics.SetHealthScore(m.HealthScore())

	if degraded {
		m.logger.Warn("Event processing degraded, outbox delivery is failing")
	} else {
		m.logger.Info("Event processing recovered")
	}
}

// HealthScore is the composite 0-100 health value: 100 healthy, each
// active mode subtracts its weight.
func (m *Manager) HealthScore() int {
	score := 100
	if m.readOnly.Load() {
		score -= weightReadOnly
	}
	if m.cacheBypass.Load() {
		score -= weightCacheBypass
	}
	if m.eventProcessing.Load() {
		score -= weightEventProcessing
	}
	return score
}

// Summary is the human-readable one-liner for logs and the health surface.
func (m *Manager) Summary() string {
	active := make([]string, 0, 3)
	if m.readOnly.Load() {
		active = append(active, modeReadOnly)
	}
	if m.cacheBypass.Load() {
		active = append(active, modeCacheBypass)
	}
	if m.eventProcessing.Load() {
		active = append(active, modeEventProcessing)
	}
	if len(active) == 0 {
		return "healthy"
	}

	summary := "degraded: " + active[0]
	for _, mode := range active[1:] {
		summary += ", " + mode
	}
	return summary
}

// Snapshot is the point-in-time state served by the degradation endpoint.
type Snapshot struct {
	ReadOnly                bool   `json:"read_only_mode"`
	CacheBypass             bool   `json:"cache_bypass_mode"`
	EventProcessingDegraded bool   `json:"event_processing_degraded"`
	HealthScore             int    `json:"health_score"`
	Summary                 string `json:"summary"`
}

// Snapshot captures the current flags. Flags are read independently, so a
// snapshot taken during a transition may mix states; the score and summary
// are computed from the same reads.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		ReadOnly:                m.readOnly.Load(),
		CacheBypass:             m.cacheBypass.Load(),
		EventProcessingDegraded: m.eventProcessing.Load(),
		HealthScore:             m.HealthScore(),
		Summary:                 m.Summary(),
	}
}

// ReportWriteExhaustion records a write that ran out of transient retries.
// Enough consecutive exhaustions enter read-only mode: the primary may
// still answer probes while failing real writes.
func (m *Manager) ReportWriteExhaustion(operation string) {
	m.mu.Lock()
	m.writeExhaustions++
	count := m.writeExhaustions
	m.mu.Unlock()

	if count >= m.cfg.FailureThreshold {
		m.SetReadOnly(true, fmt.Sprintf("%d consecutive write exhaustions, last on %s", count, operation))
	}
}

// ReportWriteSuccess resets the exhaustion streak.
func (m *Manager) ReportWriteSuccess() {
	m.mu.Lock()
	m.writeExhaustions = 0
	m.mu.Unlock()
}

// WatchPrimary probes the primary database on the configured interval.
// Consecutive failures enter read-only mode; with ReadOnlyAutoExit set,
// consecutive successes leave it again. Blocks until ctx is done.
func (m *Manager) WatchPrimary(ctx context.Context, probe func(context.Context) error) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	failures, successes := 0, 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := probe(ctx)
		if err != nil {
			failures++
			successes = 0
			if !m.ReadOnly() && failures >= m.cfg.FailureThreshold {
				m.SetReadOnly(true, fmt.Sprintf("primary probe failing: %v", err))
			}
			continue
		}

		successes++
		failures = 0
		if m.ReadOnly() && m.cfg.ReadOnlyAutoExit && successes >= m.cfg.RecoveryThreshold {
			m.SetReadOnly(false, "primary probe recovered")
		}
	}
}

// WatchCache probes the cache while bypass mode is active and clears the
// mode after enough consecutive successes. Entry is the breaker's job;
// without traffic flowing, only the probe can observe recovery. Blocks
// until ctx is done.
func (m *Manager) WatchCache(ctx context.Context, probe func(context.Context) error) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	successes := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !m.CacheBypass() {
			successes = 0
			continue
		}

		if err := probe(ctx); err != nil {
			successes = 0
			continue
		}

		successes++
		if successes >= m.cfg.RecoveryThreshold {
			m.SetCacheBypass(false)
			successes = 0
		}
	}
}

// TrackWrites decorates a command handler with degradation bookkeeping:
// successes reset the exhaustion streak, transient retry exhaustion feeds
// it. Optimistic-lock exhaustion is contention, not primary failure, and
// does not count.
func TrackWrites(m *Manager, next bus.CommandHandler) bus.CommandHandler {
	return func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		result, err := next(ctx, cmd)
		if err == nil {
			m.ReportWriteSuccess()
			return result, nil
		}

		var degraded *domainerrors.ServiceDegradedError
		if errors.As(err, &degraded) &&
			degraded.DegradationCode == domainerrors.DegradationRetryExhausted &&
			domainerrors.IsTransient(degraded.Err) {
			m.ReportWriteExhaustion(cmd.CommandName())
		}
		return nil, err
	}
}
