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
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements ports.TransactionRepository. Ledger
// rows are append-only; idempotency rests on the partial unique index
// over (wallet_id, reference_id).
//
// reference_id is stored as NULL for the credit leg of a transfer: the
// client's reference belongs to the debit leg, and NULLs stay out of the
// unique index.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a ledger repository on the primary.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Insert appends one ledger row. A reference collision surfaces as
// ErrDuplicateReference via wrapQueryError.
func (r *TransactionRepository) Insert(ctx context.Context, transaction *entities.Transaction) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO transactions (
			id, wallet_id, type, amount, reference_id,
			counterparty_wallet_id, correlation_id, status, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
	`

	var referenceID *string
	if ref := transaction.ReferenceID(); ref != "" {
		referenceID = &ref
	}

	_, err := q.Exec(ctx, query,
		transaction.ID(),
		transaction.WalletID(),
		string(transaction.Type()),
		transaction.Amount().String(),
		referenceID,
		transaction.CounterpartyWalletID(),
		transaction.CorrelationID(),
		string(transaction.Status()),
		transaction.CreatedAt(),
	)
	if err != nil {
		return wrapQueryError("insert transaction", err)
	}

	return nil
}

// FindByReference returns the ledger row recorded under (wallet,
// reference), or (nil, nil) when the reference is unused. This is the
// idempotent pre-check before a write; Insert remains the backstop
// against races.
func (r *TransactionRepository) FindByReference(ctx context.Context, walletID uuid.UUID, referenceID string) (*entities.Transaction, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, wallet_id, type, amount::text, reference_id,
		       counterparty_wallet_id, correlation_id, status, created_at
		FROM transactions
		WHERE wallet_id = $1 AND reference_id = $2
	`

	transaction, err := scanTransaction(q.QueryRow(ctx, query, walletID, referenceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return transaction, nil
}

// ListCompletedUpTo returns the wallet's completed rows with
// created_at <= until, in replay order. (created_at, id) gives a stable
// total order even when timestamps collide.
func (r *TransactionRepository) ListCompletedUpTo(ctx context.Context, walletID uuid.UUID, until time.Time) ([]*entities.Transaction, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT id, wallet_id, type, amount::text, reference_id,
		       counterparty_wallet_id, correlation_id, status, created_at
		FROM transactions
		WHERE wallet_id = $1 AND status = $2 AND created_at <= $3
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.Query(ctx, query, walletID, string(entities.TransactionStatusCompleted), until)
	if err != nil {
		return nil, wrapQueryError("list transactions", err)
	}
	defer rows.Close()

	var transactions []*entities.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("iterate transactions", err)
	}

	return transactions, nil
}

// scanTransaction hydrates one ledger row. pgx.ErrNoRows passes through
// untranslated so callers can decide what absence means.
func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var (
		id, walletID         uuid.UUID
		typeStr              string
		amountStr            string
		referenceID          *string
		counterpartyWalletID *uuid.UUID
		correlationID        uuid.UUID
		statusStr            string
		createdAt            time.Time
	)

	err := row.Scan(
		&id,
		&walletID,
		&typeStr,
		&amountStr,
		&referenceID,
		&counterpartyWalletID,
		&correlationID,
		&statusStr,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrapQueryError("scan transaction", err)
	}

	amount, err := valueobjects.NewMoney(amountStr)
	if err != nil {
		return nil, wrapQueryError("parse stored amount", err)
	}

	ref := ""
	if referenceID != nil {
		ref = *referenceID
	}

	return entities.ReconstructTransaction(
		id,
		walletID,
		entities.TransactionType(typeStr),
		amount,
		ref,
		counterpartyWalletID,
		correlationID,
		entities.TransactionStatus(statusStr),
		createdAt,
	), nil
}
