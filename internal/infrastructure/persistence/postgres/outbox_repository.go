package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
)

// Compile-time check
var _ ports.OutboxRepository = (*OutboxRepository)(nil)

// OutboxRepository implements ports.OutboxRepository. Rows are written in
// the same transaction as the wallet mutation they describe and drained
// by the publisher afterwards, so a committed write always has its events
// on durable storage.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates an outbox repository on the primary.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save appends one unpublished row.
func (r *OutboxRepository) Save(ctx context.Context, event *entities.OutboxEvent) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO outbox_events (
			id, aggregate_id, event_type, payload,
			created_at, published_at, attempts, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		event.ID(),
		event.AggregateID(),
		event.EventType(),
		event.Payload(),
		event.CreatedAt(),
		event.PublishedAt(),
		event.Attempts(),
		event.LastError(),
	)
	if err != nil {
		return wrapQueryError("save outbox event", err)
	}

	return nil
}

// FindUnpublished claims up to limit unpublished rows, oldest first.
// SKIP LOCKED keeps concurrent publisher passes from claiming the same
// rows; it only takes effect inside a unit of work.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*entities.OutboxEvent, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, aggregate_id, event_type, payload,
		       created_at, published_at, attempts, last_error
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	if hasTx(ctx) {
		query += " FOR UPDATE SKIP LOCKED"
	}

	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, wrapQueryError("find unpublished events", err)
	}
	defer rows.Close()

	var events []*entities.OutboxEvent
	for rows.Next() {
		var (
			id, aggregateID uuid.UUID
			eventType       string
			payload         []byte
			createdAt       time.Time
			publishedAt     *time.Time
			attempts        int
			lastError       string
		)

		if err := rows.Scan(&id, &aggregateID, &eventType, &payload,
			&createdAt, &publishedAt, &attempts, &lastError); err != nil {
			return nil, wrapQueryError("scan outbox row", err)
		}

		events = append(events, entities.ReconstructOutboxEvent(
			id, aggregateID, eventType, payload,
			createdAt, publishedAt, attempts, lastError,
		))
	}

	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("iterate outbox rows", err)
	}

	return events, nil
}

// MarkPublished stamps the row once. The published_at IS NULL guard makes
// a second publisher pass over the same row a no-op instead of an error,
// keeping delivery at-least-once without double bookkeeping.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE outbox_events
		SET published_at = $2
		WHERE id = $1 AND published_at IS NULL
	`

	_, err := q.Exec(ctx, query, id, publishedAt)
	if err != nil {
		return wrapQueryError("mark event published", err)
	}

	return nil
}

// MarkFailed bumps the attempt counter and records the reason. The row
// stays unpublished and will be retried on a later pass.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND published_at IS NULL
	`

	_, err := q.Exec(ctx, query, id, reason)
	if err != nil {
		return wrapQueryError("mark event failed", err)
	}

	return nil
}
