// Package entities - OutboxEvent is the durable record of a domain event
// written atomically with the state change it describes, awaiting
// publication to the event log.
package entities

import (
	"time"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/google/uuid"
)

// OutboxEvent is one row of the transactional outbox.
//
// Invariants:
// - inserted in the same database transaction as the domain mutation
// - marked published only after the event log acknowledged the append
// - attempts increments on each publish failure
type OutboxEvent struct {
	id          uuid.UUID
	aggregateID uuid.UUID // wallet id; partition key for the event log
	eventType   string
	payload     []byte // opaque serialized event, stable per event type
	createdAt   time.Time
	publishedAt *time.Time
	attempts    int
	lastError   string
}

// NewOutboxEvent creates an unpublished outbox row for an aggregate.
func NewOutboxEvent(aggregateID uuid.UUID, eventType string, payload []byte) (*OutboxEvent, error) {
	if eventType == "" {
		return nil, errors.ValidationError{
			Field:   "event_type",
			Message: "event_type is required",
		}
	}
	if len(payload) == 0 {
		return nil, errors.ValidationError{
			Field:   "payload",
			Message: "payload is required",
		}
	}

	return &OutboxEvent{
		id:          uuid.New(),
		aggregateID: aggregateID,
		eventType:   eventType,
		payload:     payload,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ReconstructOutboxEvent rebuilds an OutboxEvent from stored data.
func ReconstructOutboxEvent(
	id, aggregateID uuid.UUID,
	eventType string,
	payload []byte,
	createdAt time.Time,
	publishedAt *time.Time,
	attempts int,
	lastError string,
) *OutboxEvent {
	return &OutboxEvent{
		id:          id,
		aggregateID: aggregateID,
		eventType:   eventType,
		payload:     payload,
		createdAt:   createdAt,
		publishedAt: publishedAt,
		attempts:    attempts,
		lastError:   lastError,
	}
}

// Getters

func (e *OutboxEvent) ID() uuid.UUID {
	return e.id
}

func (e *OutboxEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

func (e *OutboxEvent) EventType() string {
	return e.eventType
}

func (e *OutboxEvent) Payload() []byte {
	return e.payload
}

func (e *OutboxEvent) CreatedAt() time.Time {
	return e.createdAt
}

// PublishedAt returns the publication instant, nil while unpublished.
func (e *OutboxEvent) PublishedAt() *time.Time {
	if e.publishedAt == nil {
		return nil
	}
	ts := *e.publishedAt
	return &ts
}

func (e *OutboxEvent) Attempts() int {
	return e.attempts
}

func (e *OutboxEvent) LastError() string {
	return e.lastError
}

// IsPublished reports whether the event log acknowledged this row.
func (e *OutboxEvent) IsPublished() bool {
	return e.publishedAt != nil
}

// MarkPublished records the event-log acknowledgement.
func (e *OutboxEvent) MarkPublished(at time.Time) {
	ts := at.UTC()
	e.publishedAt = &ts
}

// RecordFailure increments attempts and keeps the last error text.
func (e *OutboxEvent) RecordFailure(err error) {
	e.attempts++
	if err != nil {
		e.lastError = err.Error()
	}
}
