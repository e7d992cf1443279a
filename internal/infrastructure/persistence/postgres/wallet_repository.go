package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Compile-time checks
var (
	_ ports.WalletRepository     = (*WalletRepository)(nil)
	_ ports.WalletReadRepository = (*WalletReadRepository)(nil)
)

// Balances are NUMERIC(19,4) in the database and *big.Rat in the domain,
// so they cross the driver as canonical decimal strings: written through
// an explicit ::numeric cast, read back with ::text.

// WalletRepository implements ports.WalletRepository on the primary pool.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a wallet repository bound to the primary.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Insert stores a freshly created wallet at its initial version.
func (r *WalletRepository) Insert(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO wallets (id, user_id, status, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.UserID(),
		string(wallet.Status()),
		wallet.Balance().String(),
		wallet.Version(),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "wallets_pkey") {
			return domainerrors.NewDomainError(
				domainerrors.CodeInternal,
				"wallet id collision on insert",
				err,
			)
		}
		return wrapQueryError("insert wallet", err)
	}

	return nil
}

// Update persists a mutated wallet with an optimistic version check. The
// aggregate bumps its version on every mutation, so the row must still be
// at version-1. Zero rows affected means another writer got there first.
func (r *WalletRepository) Update(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	query := `
		UPDATE wallets SET
			status = $2,
			balance = $3::numeric,
			version = $4,
			updated_at = $5
		WHERE id = $1 AND version = $6
	`

	expectedVersion := wallet.Version() - 1

	result, err := q.Exec(ctx, query,
		wallet.ID(),
		string(wallet.Status()),
		wallet.Balance().String(),
		wallet.Version(),
		wallet.UpdatedAt(),
		expectedVersion,
	)
	if err != nil {
		return wrapQueryError("update wallet", err)
	}

	if result.RowsAffected() == 0 {
		return domainerrors.NewOptimisticLock(
			"Wallet",
			wallet.ID().String(),
			"wallet was modified by a concurrent transaction",
		)
	}

	return nil
}

// FindByID loads a wallet. Inside a unit of work the row is locked
// FOR UPDATE so the load-mutate-update cycle is race-free; plain reads
// take no lock.
func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, user_id, status, balance::text, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`
	if hasTx(ctx) {
		query += " FOR UPDATE"
	}

	return scanWallet(q.QueryRow(ctx, query, id))
}

// WalletReadRepository implements ports.WalletReadRepository on the
// replica pool. It never locks and never joins a write transaction.
type WalletReadRepository struct {
	pool *pgxpool.Pool
}

// NewWalletReadRepository creates a read repository bound to the replica.
func NewWalletReadRepository(pool *pgxpool.Pool) *WalletReadRepository {
	return &WalletReadRepository{pool: pool}
}

// FindByID loads a wallet snapshot from the replica.
func (r *WalletReadRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	query := `
		SELECT id, user_id, status, balance::text, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	return scanWallet(r.pool.QueryRow(ctx, query, id))
}

// scanWallet hydrates one wallet row.
func scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id                   uuid.UUID
		userID               string
		statusStr            string
		balanceStr           string
		version              int64
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &userID, &statusStr, &balanceStr, &version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrWalletNotFound
		}
		return nil, wrapQueryError("scan wallet", err)
	}

	balance, err := valueobjects.NewMoney(balanceStr)
	if err != nil {
		return nil, wrapQueryError("parse stored balance", err)
	}

	return entities.ReconstructWallet(
		id,
		userID,
		entities.WalletStatus(statusStr),
		balance,
		version,
		createdAt,
		updatedAt,
	), nil
}
