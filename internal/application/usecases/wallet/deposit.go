package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// DepositUseCase credits a wallet.
//
// Flow:
// 1. Reject when the service is in read-only mode
// 2. Validate inputs (UUID, positive amount, non-empty reference)
// 3. In one transaction: idempotency pre-check on (wallet, reference),
//    load the wallet, apply the deposit, persist wallet + ledger row +
//    FundsDeposited outbox row
// 4. A duplicate reference (pre-check hit, or a lost insert race against
//    the unique index) replays the recorded outcome
// 5. After commit, invalidate the cache entry (best-effort)
type DepositUseCase struct {
	walletRepo      ports.WalletRepository
	transactionRepo ports.TransactionRepository
	eventStore      EventStore
	cache           ports.WalletCache
	degradation     ports.DegradationState
	uow             ports.UnitOfWork
}

// NewDepositUseCase creates the use case.
func NewDepositUseCase(
	walletRepo ports.WalletRepository,
	transactionRepo ports.TransactionRepository,
	eventStore EventStore,
	cache ports.WalletCache,
	degradation ports.DegradationState,
	uow ports.UnitOfWork,
) *DepositUseCase {
	return &DepositUseCase{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		eventStore:      eventStore,
		cache:           cache,
		degradation:     degradation,
		uow:             uow,
	}
}

// Execute applies the deposit.
func (uc *DepositUseCase) Execute(ctx context.Context, cmd dtos.DepositCommand) (*dtos.OperationResultDTO, error) {
	if uc.degradation.ReadOnly() {
		return nil, errors.NewServiceDegraded(
			errors.DegradationReadOnly, dtos.CommandDeposit, "service is in read-only mode")
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
		// 1. Idempotent replay: a reference already recorded for this
		// wallet returns the original outcome and changes nothing.
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

		// 2. Load and mutate the aggregate
		wallet, err := uc.walletRepo.FindByID(txCtx, walletID)
		if err != nil {
			return err
		}
		if err := wallet.Deposit(amount); err != nil {
			return err
		}

		// 3. Ledger row carrying the idempotency reference
		transaction, err := entities.NewTransaction(
			walletID, entities.TransactionTypeDeposit, amount, cmd.ReferenceID)
		if err != nil {
			return err
		}

		// 4. Persist both; the version check guards concurrent writers
		if err := uc.walletRepo.Update(txCtx, wallet); err != nil {
			return fmt.Errorf("failed to update wallet: %w", err)
		}
		if err := uc.transactionRepo.Insert(txCtx, transaction); err != nil {
			// The unique index is the backstop; ErrDuplicateReference
			// rolls back here and is replayed outside the transaction.
			return err
		}

		// 5. Outbox row commits together with the mutation
		event := events.NewFundsDeposited(
			walletID, transaction.ID(), amount, cmd.ReferenceID, wallet.Balance())
		if err := uc.eventStore.StoreDomainEvent(txCtx, event); err != nil {
			return fmt.Errorf("failed to store FundsDeposited event: %w", err)
		}

		dto := dtos.ToOperationResultDTO(wallet, transaction)
		result = &dto
		return nil
	})

	if err != nil {
		if errors.IsDuplicateReference(err) {
			// Lost the insert race: a concurrent request committed this
			// reference first, so its outcome is ours too.
			return replayOperation(ctx, uc.transactionRepo, uc.walletRepo, walletID, cmd.ReferenceID)
		}
		return nil, err
	}

	if !replayed {
		metrics.RecordTransaction(string(entities.TransactionTypeDeposit))
		// Best-effort: the breaker-wrapped cache absorbs failures and the
		// TTL bounds staleness if an invalidation is lost.
		_ = uc.cache.Invalidate(ctx, walletID)
	}

	return result, nil
}

// parseMutationInputs validates the common deposit/withdraw inputs.
func parseMutationInputs(walletID, amount, referenceID string) (uuid.UUID, valueobjects.Money, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return uuid.Nil, valueobjects.Money{}, errors.ValidationError{
			Field:   "wallet_id",
			Message: "invalid UUID format",
		}
	}

	money, err := valueobjects.NewMoney(amount)
	if err != nil {
		return uuid.Nil, valueobjects.Money{}, errors.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("invalid amount: %v", err),
		}
	}
	if !money.IsPositive() {
		return uuid.Nil, valueobjects.Money{}, errors.ValidationError{
			Field:   "amount",
			Message: "amount must be positive",
		}
	}

	if referenceID == "" {
		return uuid.Nil, valueobjects.Money{}, errors.ValidationError{
			Field:   "reference_id",
			Message: "reference_id is required",
		}
	}

	return id, money, nil
}

// replayOperation loads the transaction recorded under (wallet, reference)
// and the wallet's current state. Used after a duplicate-reference rollback,
// outside the failed transaction.
func replayOperation(
	ctx context.Context,
	transactionRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	walletID uuid.UUID,
	referenceID string,
) (*dtos.OperationResultDTO, error) {
	existing, err := transactionRepo.FindByReference(ctx, walletID, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded transaction: %w", err)
	}
	if existing == nil {
		return nil, errors.NewInternal("duplicate reference reported but no transaction recorded", nil)
	}

	wallet, err := walletRepo.FindByID(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	dto := dtos.ToOperationResultDTO(wallet, existing)
	return &dto, nil
}
