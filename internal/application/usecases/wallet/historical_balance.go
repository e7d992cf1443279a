package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// HistoricalBalanceUseCase reconstructs a wallet's balance at an instant
// by folding its COMPLETED ledger rows from zero in (created_at, id)
// order. Repeated queries for the same instant produce identical output.
type HistoricalBalanceUseCase struct {
	readRepo        ports.WalletReadRepository
	transactionRepo ports.TransactionRepository
}

// NewHistoricalBalanceUseCase creates the use case.
func NewHistoricalBalanceUseCase(
	readRepo ports.WalletReadRepository,
	transactionRepo ports.TransactionRepository,
) *HistoricalBalanceUseCase {
	return &HistoricalBalanceUseCase{
		readRepo:        readRepo,
		transactionRepo: transactionRepo,
	}
}

// Execute replays the wallet's ledger up to the query timestamp.
func (uc *HistoricalBalanceUseCase) Execute(ctx context.Context, query dtos.HistoricalBalanceQuery) (*dtos.HistoricalBalanceDTO, error) {
	walletID, err := uuid.Parse(query.WalletID)
	if err != nil {
		return nil, errors.ValidationError{
			Field:   "wallet_id",
			Message: "invalid UUID format",
		}
	}
	if query.Timestamp.IsZero() {
		return nil, errors.ValidationError{
			Field:   "timestamp",
			Message: "timestamp is required",
		}
	}

	// Existence check: an unknown wallet is NotFound, not balance zero.
	if _, err := uc.readRepo.FindByID(ctx, walletID); err != nil {
		return nil, err
	}

	rows, err := uc.transactionRepo.ListCompletedUpTo(ctx, walletID, query.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	// Credits add, debits subtract, anything else is ignored.
	balance := valueobjects.Zero()
	for _, row := range rows {
		switch {
		case row.Type().IsCredit():
			balance = balance.Add(row.Amount())
		case row.Type().IsDebit():
			next, err := balance.Subtract(row.Amount())
			if err != nil {
				// A COMPLETED debit can never overdraw; a negative fold
				// means the ledger itself is corrupt.
				return nil, errors.NewInternal(
					fmt.Sprintf("ledger fold went negative at transaction %s", row.ID()), err)
			}
			balance = next
		}
	}

	dto := dtos.ToHistoricalBalanceDTO(query.WalletID, balance, query.Timestamp)
	return &dto, nil
}
