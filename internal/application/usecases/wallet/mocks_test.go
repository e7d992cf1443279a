package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Shared hand-rolled mocks for the use-case tests in this package. Each
// mock exposes function fields; a nil field falls back to a benign default.

type mockWalletRepo struct {
	insertFunc   func(ctx context.Context, wallet *entities.Wallet) error
	updateFunc   func(ctx context.Context, wallet *entities.Wallet) error
	findByIDFunc func(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
}

func (m *mockWalletRepo) Insert(ctx context.Context, wallet *entities.Wallet) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, wallet)
	}
	return nil
}

func (m *mockWalletRepo) Update(ctx context.Context, wallet *entities.Wallet) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, wallet)
	}
	return nil
}

func (m *mockWalletRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, domainErrors.ErrWalletNotFound
}

type mockTransactionRepo struct {
	insertFunc            func(ctx context.Context, transaction *entities.Transaction) error
	findByReferenceFunc   func(ctx context.Context, walletID uuid.UUID, referenceID string) (*entities.Transaction, error)
	listCompletedUpToFunc func(ctx context.Context, walletID uuid.UUID, until time.Time) ([]*entities.Transaction, error)
}

func (m *mockTransactionRepo) Insert(ctx context.Context, transaction *entities.Transaction) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, transaction)
	}
	return nil
}

func (m *mockTransactionRepo) FindByReference(ctx context.Context, walletID uuid.UUID, referenceID string) (*entities.Transaction, error) {
	if m.findByReferenceFunc != nil {
		return m.findByReferenceFunc(ctx, walletID, referenceID)
	}
	return nil, nil
}

func (m *mockTransactionRepo) ListCompletedUpTo(ctx context.Context, walletID uuid.UUID, until time.Time) ([]*entities.Transaction, error) {
	if m.listCompletedUpToFunc != nil {
		return m.listCompletedUpToFunc(ctx, walletID, until)
	}
	return nil, nil
}

// mockEventStore records every stored event in order.
type mockEventStore struct {
	storeFunc func(ctx context.Context, event events.DomainEvent) error
	stored    []events.DomainEvent
}

func (m *mockEventStore) StoreDomainEvent(ctx context.Context, event events.DomainEvent) error {
	if m.storeFunc != nil {
		if err := m.storeFunc(ctx, event); err != nil {
			return err
		}
	}
	m.stored = append(m.stored, event)
	return nil
}

func (m *mockEventStore) eventTypes() []string {
	types := make([]string, 0, len(m.stored))
	for _, event := range m.stored {
		types = append(types, event.EventType())
	}
	return types
}

// mockCache tracks invalidations and serves a configurable Get.
type mockCache struct {
	getFunc     func(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	putFunc     func(ctx context.Context, wallet *entities.Wallet) error
	invalidated []uuid.UUID
	puts        []uuid.UUID
}

func (m *mockCache) Get(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, ports.ErrCacheMiss
}

func (m *mockCache) Put(ctx context.Context, wallet *entities.Wallet) error {
	m.puts = append(m.puts, wallet.ID())
	if m.putFunc != nil {
		return m.putFunc(ctx, wallet)
	}
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	m.invalidated = append(m.invalidated, id)
	return nil
}

func (m *mockCache) Ping(ctx context.Context) error {
	return nil
}

// mockUoW runs the callback inline, imitating a committed transaction.
type mockUoW struct {
	executeFunc func(ctx context.Context, fn func(context.Context) error) error
	calls       int
}

func (m *mockUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	m.calls++
	if m.executeFunc != nil {
		return m.executeFunc(ctx, fn)
	}
	return fn(ctx)
}

func (m *mockUoW) ExecuteWithResult(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	m.calls++
	return fn(ctx)
}

// mockDegradation reports fixed flag values.
type mockDegradation struct {
	readOnly    bool
	cacheBypass bool
}

func (m *mockDegradation) ReadOnly() bool {
	return m.readOnly
}

func (m *mockDegradation) CacheBypass() bool {
	return m.cacheBypass
}

// activeWallet builds an ACTIVE wallet with the given balance for tests.
func activeWallet(userID, balance string) *entities.Wallet {
	now := time.Now().UTC()
	return entities.ReconstructWallet(
		uuid.New(),
		userID,
		entities.WalletStatusActive,
		valueobjects.MustMoney(balance),
		1,
		now,
		now,
	)
}
