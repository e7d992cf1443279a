package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/domain/entities"
)

// Shared hand-rolled stubs for the outbox tests. The repo stub keeps rows
// in memory and behaves like the real table: FindUnpublished returns
// oldest-first up to the limit, MarkPublished removes a row from the
// unpublished set. Everything is mutex-guarded so the loop tests can poll
// from the test goroutine.

type stubOutboxRepo struct {
	mu        sync.Mutex
	rows      []*entities.OutboxEvent
	published []uuid.UUID
	failed    map[uuid.UUID]int

	saveFunc func(ctx context.Context, event *entities.OutboxEvent) error
}

func newStubOutboxRepo(rows ...*entities.OutboxEvent) *stubOutboxRepo {
	return &stubOutboxRepo{
		rows:   rows,
		failed: make(map[uuid.UUID]int),
	}
}

func (s *stubOutboxRepo) Save(ctx context.Context, event *entities.OutboxEvent) error {
	if s.saveFunc != nil {
		if err := s.saveFunc(ctx, event); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, event)
	return nil
}

func (s *stubOutboxRepo) FindUnpublished(ctx context.Context, limit int) ([]*entities.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]*entities.OutboxEvent, 0, limit)
	for _, row := range s.rows {
		if row.IsPublished() {
			continue
		}
		batch = append(batch, row)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

func (s *stubOutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.ID() == id {
			row.MarkPublished(publishedAt)
			s.published = append(s.published, id)
			return nil
		}
	}
	return nil
}

func (s *stubOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id]++
	return nil
}

func (s *stubOutboxRepo) publishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// stubEventLog records appends in order; appendFunc can inject failures.
type stubEventLog struct {
	mu       sync.Mutex
	appended []uuid.UUID

	appendFunc func(aggregateID, eventID uuid.UUID, eventType string, payload []byte) error
}

func (s *stubEventLog) Append(ctx context.Context, aggregateID, eventID uuid.UUID, eventType string, payload []byte) error {
	if s.appendFunc != nil {
		if err := s.appendFunc(aggregateID, eventID, eventType, payload); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, eventID)
	return nil
}

func (s *stubEventLog) Ping(ctx context.Context) error {
	return nil
}

func (s *stubEventLog) appendedIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.appended))
	copy(out, s.appended)
	return out
}

// stubReporter records every degradation flag transition it receives.
type stubReporter struct {
	mu    sync.Mutex
	calls []bool
}

func (s *stubReporter) SetEventProcessingDegraded(degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, degraded)
}

func (s *stubReporter) lastCall() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return false, false
	}
	return s.calls[len(s.calls)-1], true
}

func (s *stubReporter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubUoW runs the callback inline, imitating a committed transaction.
type stubUoW struct{}

func (stubUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (stubUoW) ExecuteWithResult(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}

func outboxRow(aggregateID uuid.UUID, eventType string) *entities.OutboxEvent {
	row, err := entities.NewOutboxEvent(aggregateID, eventType, []byte(`{"event_type":"`+eventType+`"}`))
	if err != nil {
		panic(err)
	}
	return row
}
