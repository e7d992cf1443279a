package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Breaker names used in logs and metric labels.
const (
	cacheBreakerName    = "cache"
	eventLogBreakerName = "event_log"
)

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	// FailureRatio is the rolling failure ratio that opens the breaker.
	FailureRatio float64

	// MinRequests is how many observations the ratio needs before it
	// applies; below it the breaker stays closed.
	MinRequests uint32

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration

	// MaxHalfOpen caps concurrent probe requests while half-open.
	MaxHalfOpen uint32
}

// DefaultBreakerConfig returns the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureRatio: 0.5,
		MinRequests:  10,
		OpenTimeout:  30 * time.Second,
		MaxHalfOpen:  3,
	}
}

// breakerStateValue maps breaker states onto the state gauge.
func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// rejected reports whether the breaker refused the call without running it.
func rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func newBreaker(
	name string,
	cfg BreakerConfig,
	logger *slog.Logger,
	isSuccessful func(error) bool,
	onChange func(to gobreaker.State),
) *gobreaker.CircuitBreaker {
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = DefaultBreakerConfig().FailureRatio
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = DefaultBreakerConfig().MinRequests
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxHalfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerStateChange(name, from.String(), to.String(), breakerStateValue(to))
			if to == gobreaker.StateOpen {
				logger.Warn("Circuit breaker opened",
					slog.String("breaker", name),
					slog.String("from", from.String()),
				)
			} else {
				logger.Info("Circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}
			if onChange != nil {
				onChange(to)
			}
		},
	})
}

// CacheBypassSetter is the slice of the degradation manager the cache
// breaker drives.
type CacheBypassSetter interface {
	SetCacheBypass(active bool)
}

// CacheBreaker wraps a WalletCache with a circuit breaker. The cache is an
// optimization, so the wrapper degrades instead of failing: with the
// breaker open, Get reports a miss and Put/Invalidate do nothing, leaving
// staleness bounded by the entry TTL. A cache miss counts as success, only
// real failures feed the breaker.
type CacheBreaker struct {
	inner   ports.WalletCache
	breaker *gobreaker.CircuitBreaker
}

var _ ports.WalletCache = (*CacheBreaker)(nil)

// NewCacheBreaker wraps inner. bypass, when non-nil, is set while the
// breaker is open so readers skip the cache path entirely instead of
// paying for rejected calls.
func NewCacheBreaker(inner ports.WalletCache, cfg BreakerConfig, logger *slog.Logger, bypass CacheBypassSetter) *CacheBreaker {
	onChange := func(to gobreaker.State) {
		if bypass == nil {
			return
		}
		switch to {
		case gobreaker.StateOpen:
			bypass.SetCacheBypass(true)
		case gobreaker.StateClosed:
			bypass.SetCacheBypass(false)
		}
	}
	isSuccessful := func(err error) bool {
		return err == nil || errors.Is(err, ports.ErrCacheMiss)
	}

	return &CacheBreaker{
		inner:   inner,
		breaker: newBreaker(cacheBreakerName, cfg, logger, isSuccessful, onChange),
	}
}

// Get returns the cached wallet. A rejected call reads as a miss.
func (c *CacheBreaker) Get(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Get(ctx, id)
	})
	if err != nil {
		if rejected(err) {
			return nil, ports.ErrCacheMiss
		}
		return nil, err
	}

	wallet, ok := result.(*entities.Wallet)
	if !ok || wallet == nil {
		return nil, ports.ErrCacheMiss
	}
	return wallet, nil
}

// Put stores a snapshot. A rejected call is a no-op.
func (c *CacheBreaker) Put(ctx context.Context, wallet *entities.Wallet) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Put(ctx, wallet)
	})
	if rejected(err) {
		return nil
	}
	return err
}

// Invalidate drops the entry. A rejected call is a no-op.
func (c *CacheBreaker) Invalidate(ctx context.Context, id uuid.UUID) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Invalidate(ctx, id)
	})
	if rejected(err) {
		return nil
	}
	return err
}

// Ping bypasses the breaker on purpose: health probes must see the real
// dependency state, and their outcome drives bypass recovery.
func (c *CacheBreaker) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// State exposes the breaker state for the health surface.
func (c *CacheBreaker) State() gobreaker.State {
	return c.breaker.State()
}

// EventLogBreaker wraps an EventLog with a circuit breaker. Unlike the
// cache, append failures must surface: the outbox row stays unpublished
// and is retried on a later pass.
type EventLogBreaker struct {
	inner   ports.EventLog
	breaker *gobreaker.CircuitBreaker
}

var _ ports.EventLog = (*EventLogBreaker)(nil)

// NewEventLogBreaker wraps inner.
func NewEventLogBreaker(inner ports.EventLog, cfg BreakerConfig, logger *slog.Logger) *EventLogBreaker {
	return &EventLogBreaker{
		inner:   inner,
		breaker: newBreaker(eventLogBreakerName, cfg, logger, nil, nil),
	}
}

// Append publishes one event. While the breaker is open the append fails
// fast with a transient error instead of waiting on a dead connection.
func (e *EventLogBreaker) Append(ctx context.Context, aggregateID, eventID uuid.UUID, eventType string, payload []byte) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.inner.Append(ctx, aggregateID, eventID, eventType, payload)
	})
	if rejected(err) {
		return domainerrors.NewTransient("event_log.Append", err)
	}
	return err
}

// Ping bypasses the breaker so health reporting sees the real state.
func (e *EventLogBreaker) Ping(ctx context.Context) error {
	return e.inner.Ping(ctx)
}

// State exposes the breaker state for the health surface.
func (e *EventLogBreaker) State() gobreaker.State {
	return e.breaker.State()
}
