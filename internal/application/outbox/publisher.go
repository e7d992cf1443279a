package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// cycleTimeout bounds one publishing pass so a stuck event log cannot
// wedge the loop past the next tick forever.
const cycleTimeout = 30 * time.Second

// PublisherConfig tunes the background drain loop.
type PublisherConfig struct {
	// PollInterval is the cadence of the drain loop.
	PollInterval time.Duration

	// BatchSize caps the rows claimed per pass.
	BatchSize int

	// FailureCycles is how many consecutive fully-failed passes mark
	// event processing degraded.
	FailureCycles int
}

// DefaultPublisherConfig returns the production defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		PollInterval:  2 * time.Second,
		BatchSize:     100,
		FailureCycles: 3,
	}
}

// Publisher drains unpublished outbox rows to the event log.
//
// Each pass claims a batch inside a short transaction (FOR UPDATE SKIP
// LOCKED via the repository), appends every row to the event log and marks
// it published. Failed rows keep their attempt bookkeeping and are retried
// on later passes, so delivery is at-least-once. Rows behind a failed row
// of the same aggregate are skipped for the pass to preserve per-wallet
// order in the log.
type Publisher struct {
	uow      ports.UnitOfWork
	repo     ports.OutboxRepository
	eventLog ports.EventLog
	reporter ports.EventProcessingReporter
	logger   *slog.Logger
	cfg      PublisherConfig

	// failedCycles counts consecutive passes that attempted rows and
	// published none. Touched only by the loop goroutine and
	// PublishAllPending callers via trackCycle.
	mu           sync.Mutex
	failedCycles int

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewPublisher assembles a publisher. reporter may be nil when no
// degradation tracking is wanted (tests).
func NewPublisher(
	uow ports.UnitOfWork,
	repo ports.OutboxRepository,
	eventLog ports.EventLog,
	reporter ports.EventProcessingReporter,
	logger *slog.Logger,
	cfg PublisherConfig,
) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPublisherConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultPublisherConfig().BatchSize
	}
	if cfg.FailureCycles <= 0 {
		cfg.FailureCycles = DefaultPublisherConfig().FailureCycles
	}

	return &Publisher{
		uow:      uow,
		repo:     repo,
		eventLog: eventLog,
		reporter: reporter,
		logger:   logger,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background drain loop. Safe to call once.
func (p *Publisher) Start() {
	p.startOnce.Do(func() {
		go p.loop()
		p.logger.Info("Outbox publisher started",
			slog.Duration("poll_interval", p.cfg.PollInterval),
			slog.Int("batch_size", p.cfg.BatchSize),
		)
	})
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	<-p.done
	p.logger.Info("Outbox publisher stopped")
}

func (p *Publisher) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
			published, failed, err := p.publishBatch(ctx)
			cancel()

			if err != nil {
				p.logger.Error("Outbox pass failed",
					slog.String("error", err.Error()),
				)
			}
			p.trackCycle(published, failed, err)
		}
	}
}

// PublishAllPending drains the outbox synchronously, batch by batch, until
// no row remains unpublished or the remaining rows all fail. Returns the
// number of rows published.
func (p *Publisher) PublishAllPending(ctx context.Context) (int, error) {
	total := 0
	for {
		published, failed, err := p.publishBatch(ctx)
		total += published
		if err != nil {
			return total, err
		}
		if published == 0 {
			if failed > 0 {
				return total, fmt.Errorf("outbox drain stalled: %d rows failing", failed)
			}
			return total, nil
		}
	}
}

// publishBatch runs one pass: claim, append, mark. Returns how many rows
// were published and how many failed their append.
func (p *Publisher) publishBatch(ctx context.Context) (published, failed int, err error) {
	start := time.Now()

	err = p.uow.Execute(ctx, func(txCtx context.Context) error {
		rows, err := p.repo.FindUnpublished(txCtx, p.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to claim outbox batch: %w", err)
		}

		// Aggregates with a failed append are blocked for the rest of the
		// pass: publishing a younger row first would break per-wallet order.
		blocked := make(map[uuid.UUID]struct{})

		for _, row := range rows {
			if _, isBlocked := blocked[row.AggregateID()]; isBlocked {
				continue
			}

			if appendErr := p.eventLog.Append(txCtx, row.AggregateID(), row.ID(), row.EventType(), row.Payload()); appendErr != nil {
				failed++
				blocked[row.AggregateID()] = struct{}{}
				metrics.RecordOutboxFailed()
				p.logger.Warn("Outbox append failed",
					slog.String("event_id", row.ID().String()),
					slog.String("event_type", row.EventType()),
					slog.Int("attempts", row.Attempts()+1),
					slog.String("error", appendErr.Error()),
				)
				if markErr := p.repo.MarkFailed(txCtx, row.ID(), appendErr.Error()); markErr != nil {
					return fmt.Errorf("failed to record outbox failure: %w", markErr)
				}
				continue
			}

			now := time.Now().UTC()
			if markErr := p.repo.MarkPublished(txCtx, row.ID(), now); markErr != nil {
				return fmt.Errorf("failed to mark outbox row published: %w", markErr)
			}
			published++
			metrics.RecordOutboxPublished()
			metrics.ObserveOutboxDeliveryLag(now.Sub(row.CreatedAt()))
		}

		return nil
	})

	metrics.ObserveOutboxBatch(time.Since(start))
	return published, failed, err
}

// trackCycle drives the event_processing_degraded flag: consecutive passes
// that attempt rows and publish none mark it, any pass that publishes
// cleanly clears it. Empty passes leave the flag as is.
func (p *Publisher) trackCycle(published, failed int, err error) {
	if p.reporter == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case err != nil, failed > 0 && published == 0:
		p.failedCycles++
		if p.failedCycles >= p.cfg.FailureCycles {
			p.reporter.SetEventProcessingDegraded(true)
		}
	case published > 0 && failed == 0:
		p.failedCycles = 0
		p.reporter.SetEventProcessingDegraded(false)
	}
}
