// Package resilience contains the fault-handling building blocks that sit
// between the application layer and remote dependencies: bounded retries,
// circuit breakers and the process-wide degradation manager.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Haleralex/walletcore/internal/application/bus"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Policy names used as metric labels.
const (
	PolicyOptimistic = "optimistic_lock"
	PolicyTransient  = "transient"
)

// RetryConfig groups the tunables for one retry policy.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first
	InitialWait time.Duration // backoff before the first retry
	MaxWait     time.Duration // cap for the randomized exponential growth
}

// DefaultOptimisticRetryConfig suits version conflicts on hot wallets:
// conflicts resolve quickly, so waits are short and attempts generous.
func DefaultOptimisticRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, InitialWait: 25 * time.Millisecond, MaxWait: 250 * time.Millisecond}
}

// DefaultTransientRetryConfig suits connection-level failures, which need
// longer waits and fewer attempts before the caller gives up.
func DefaultTransientRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: 100 * time.Millisecond, MaxWait: time.Second}
}

// RetryPolicy re-runs an operation on errors selected by Retryable, with
// capped randomized exponential backoff between attempts. Everything else
// fails on the first attempt.
type RetryPolicy struct {
	name      string
	cfg       RetryConfig
	retryable func(error) bool
}

// NewOptimisticLockPolicy retries version conflicts.
func NewOptimisticLockPolicy(cfg RetryConfig) *RetryPolicy {
	return newRetryPolicy(PolicyOptimistic, cfg, domainerrors.IsOptimisticLock)
}

// NewTransientPolicy retries connection and timeout failures.
func NewTransientPolicy(cfg RetryConfig) *RetryPolicy {
	return newRetryPolicy(PolicyTransient, cfg, domainerrors.IsTransient)
}

func newRetryPolicy(name string, cfg RetryConfig, retryable func(error) bool) *RetryPolicy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxWait < cfg.InitialWait {
		cfg.MaxWait = cfg.InitialWait
	}
	return &RetryPolicy{name: name, cfg: cfg, retryable: retryable}
}

// Name returns the policy's metric label.
func (p *RetryPolicy) Name() string {
	return p.name
}

// Execute runs op under the policy. The context cancels waits between
// attempts. When a retryable error survives the whole budget the caller
// receives a ServiceDegraded error naming the operation; non-retryable
// errors come back unchanged.
func (p *RetryPolicy) Execute(ctx context.Context, operation string, op func() error) error {
	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialWait
	bo.MaxInterval = p.cfg.MaxWait
	bo.MaxElapsedTime = 0 // the budget is attempt-count based

	notify := func(err error, _ time.Duration) {
		metrics.RecordRetryAttempt(p.name, operation, domainerrors.Code(err))
	}

	err := backoff.RetryNotify(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.MaxAttempts-1)), ctx),
		notify,
	)
	if err == nil {
		return nil
	}
	if p.retryable(err) {
		metrics.RecordRetryExhausted(p.name, operation)
		return domainerrors.NewRetryExhausted(operation, p.cfg.MaxAttempts, err)
	}
	return err
}

// RetryCommand decorates a command handler with the policy. The handler is
// re-run in full on every attempt, so it must be safe to repeat.
func RetryCommand(p *RetryPolicy, next bus.CommandHandler) bus.CommandHandler {
	return func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		var result interface{}
		err := p.Execute(ctx, cmd.CommandName(), func() error {
			var opErr error
			result, opErr = next(ctx, cmd)
			return opErr
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// RetryQuery decorates a query handler with the policy.
func RetryQuery(p *RetryPolicy, next bus.QueryHandler) bus.QueryHandler {
	return func(ctx context.Context, q bus.Query) (interface{}, error) {
		var result interface{}
		err := p.Execute(ctx, q.QueryName(), func() error {
			var opErr error
			result, opErr = next(ctx, q)
			return opErr
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
