package wallet

import (
	"context"
	"fmt"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// WithdrawUseCase debits a wallet, subject to sufficient funds.
//
// Same template as DepositUseCase; the only domain difference is the
// balance invariant: the post-withdrawal balance must stay non-negative,
// otherwise the command fails with InsufficientFunds and no state changes.
type WithdrawUseCase struct {
	walletRepo      ports.WalletRepository
	transactionRepo ports.TransactionRepository
	eventStore      EventStore
	cache           ports.WalletCache
	degradation     ports.DegradationState
	uow             ports.UnitOfWork
}

// NewWithdrawUseCase creates the use case.
func NewWithdrawUseCase(
	walletRepo ports.WalletRepository,
	transactionRepo ports.TransactionRepository,
	eventStore EventStore,
	cache ports.WalletCache,
	degradation ports.DegradationState,
	uow ports.UnitOfWork,
) *WithdrawUseCase {
	return &WithdrawUseCase{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		eventStore:      eventStore,
		cache:           cache,
		degradation:     degradation,
		uow:             uow,
	}
}

// Execute applies the withdrawal.
func (uc *WithdrawUseCase) Execute(ctx context.Context, cmd dtos.WithdrawCommand) (*dtos.OperationResultDTO, error) {
	if uc.degradation.ReadOnly() {
		return nil, errors.NewServiceDegraded(
			errors.DegradationReadOnly, dtos.CommandWithdraw, "service is in read-only mode")
	}

	walletID, amount, err := parseMutationInputs(cmd.WalletID, cmd.Amount, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}

	metrics.WriteStarted()
	defer metrics.WriteFinished()

	var (
		result   *dtos.OperationResultDTO
		replayed bool
	)

	err = uc.uow.Execute(ctx, func(txCtx context.Context) error {
		// 1. Idempotent replay on a known reference
		existing, err := uc.transactionRepo.FindByReference(txCtx, walletID, cmd.ReferenceID)
		if err != nil {
			return fmt.Errorf("failed to check reference: %w", err)
		}
		if existing != nil {
			wallet, err := uc.walletRepo.FindByID(txCtx, walletID)
			if err != nil {
				return fmt.Errorf("failed to load wallet: %w", err)
			}
			dto := dtos.ToOperationResultDTO(wallet, existing)
			result, replayed = &dto, true
			return nil
		}

		// 2. Load and debit; InsufficientFunds aborts before any write
		wallet, err := uc.walletRepo.FindByID(txCtx, walletID)
		if err != nil {
			return err
		}
		if err := wallet.Withdraw(amount); err != nil {
			return err
		}

		// 3. Ledger row carrying the idempotency reference
		transaction, err := entities.NewTransaction(
			walletID, entities.TransactionTypeWithdrawal, amount, cmd.ReferenceID)
		if err != nil {
			return err
		}

		// 4. Persist both
		if err := uc.walletRepo.Update(txCtx, wallet); err != nil {
			return fmt.Errorf("failed to update wallet: %w", err)
		}
		if err := uc.transactionRepo.Insert(txCtx, transaction); err != nil {
			return err
		}

		// 5. Outbox row commits together with the mutation
		event := events.NewFundsWithdrawn(
			walletID, transaction.ID(), amount, cmd.ReferenceID, wallet.Balance())
		if err := uc.eventStore.StoreDomainEvent(txCtx, event); err != nil {
			return fmt.Errorf("failed to store FundsWithdrawn event: %w", err)
		}

		dto := dtos.ToOperationResultDTO(wallet, transaction)
		result = &dto
		return nil
	})

	if err != nil {
		if errors.IsDuplicateReference(err) {
			return replayOperation(ctx, uc.transactionRepo, uc.walletRepo, walletID, cmd.ReferenceID)
		}
		return nil, err
	}

	if !replayed {
		metrics.RecordTransaction(string(entities.TransactionTypeWithdrawal))
		_ = uc.cache.Invalidate(ctx, walletID)
	}

	return result, nil
}
