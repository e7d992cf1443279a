// Package outbox implements the transactional outbox: the write side
// stores serialized domain events on the caller's database transaction,
// and the publisher drains unpublished rows to the event log.
package outbox

import (
	"context"
	"fmt"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Store is the write side of the outbox. Command handlers call it inside
// their unit of work, so the event row commits or rolls back together
// with the state change it describes.
type Store struct {
	repo ports.OutboxRepository
}

// NewStore creates an outbox store over the given repository.
func NewStore(repo ports.OutboxRepository) *Store {
	return &Store{repo: repo}
}

// StoreDomainEvent serializes the event into its envelope form and appends
// it to the outbox on the caller's transaction.
func (s *Store) StoreDomainEvent(ctx context.Context, event events.DomainEvent) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	row, err := entities.NewOutboxEvent(event.AggregateID(), event.EventType(), payload)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	if err := s.repo.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	metrics.RecordOutboxCreated(1)
	return nil
}
