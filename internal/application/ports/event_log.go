package ports

import (
	"context"

	"github.com/google/uuid"
)

// EventLog is the downstream sink for committed domain events. The outbox
// publisher appends serialized event envelopes; delivery is at-least-once
// and consumers deduplicate on the event id carried in the envelope and
// headers.
//
// Implementations must preserve append order per aggregate.
type EventLog interface {
	// Append publishes one event payload for the aggregate. eventID and
	// eventType travel as message headers for cheap consumer-side
	// dedup and routing.
	Append(ctx context.Context, aggregateID, eventID uuid.UUID, eventType string, payload []byte) error

	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
}
