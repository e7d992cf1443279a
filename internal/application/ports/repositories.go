// Package ports defines the interfaces the application layer depends on.
// Implementations live in the infrastructure layer.
package ports

import (
	"context"
	"time"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/google/uuid"
)

// WalletRepository persists wallet aggregates on the primary database.
//
// Insert and Update are split on purpose: a freshly created wallet starts
// at version 1, so the version column cannot double as an insert/update
// discriminator.
type WalletRepository interface {
	// Insert stores a new wallet. Fails if the id already exists.
	Insert(ctx context.Context, wallet *entities.Wallet) error

	// Update persists a modified wallet with an optimistic version check:
	// the row is written only if the stored version equals wallet.Version()-1
	// (the version the aggregate was loaded at). A stale version yields
	// an OptimisticLockError.
	Update(ctx context.Context, wallet *entities.Wallet) error

	// FindByID loads a wallet. Returns ErrWalletNotFound when absent.
	// Inside a unit of work the row is locked FOR UPDATE.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
}

// WalletReadRepository serves read-only wallet lookups from the replica.
// Reads may lag the primary; callers that need read-your-writes go
// through WalletRepository instead.
type WalletReadRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
}

// TransactionRepository persists the immutable ledger rows.
type TransactionRepository interface {
	// Insert appends a ledger row. A (wallet_id, reference_id) collision
	// surfaces as ErrDuplicateReference.
	Insert(ctx context.Context, transaction *entities.Transaction) error

	// FindByReference returns the transaction recorded under (wallet,
	// reference), or (nil, nil) when the reference is unused. Serves the
	// idempotent pre-check before a write; Insert remains the backstop
	// against concurrent duplicates.
	FindByReference(ctx context.Context, walletID uuid.UUID, referenceID string) (*entities.Transaction, error)

	// ListCompletedUpTo returns all completed transactions for the wallet
	// with created_at <= until, ordered by (created_at, id) ascending.
	// Used to replay a wallet's balance at a point in time.
	ListCompletedUpTo(ctx context.Context, walletID uuid.UUID, until time.Time) ([]*entities.Transaction, error)
}

// OutboxRepository persists domain events alongside the state change that
// produced them. Rows are written inside the same database transaction as
// the wallet mutation and drained by the outbox publisher.
type OutboxRepository interface {
	// Save appends an unpublished outbox row.
	Save(ctx context.Context, event *entities.OutboxEvent) error

	// FindUnpublished claims up to limit unpublished rows, oldest first.
	// Inside a unit of work rows are locked with SKIP LOCKED so multiple
	// publishers never double-deliver.
	FindUnpublished(ctx context.Context, limit int) ([]*entities.OutboxEvent, error)

	// MarkPublished records that the row was handed to the event log.
	// A row already marked published is left untouched.
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error

	// MarkFailed bumps the attempt counter and stores the failure reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
