package wallet

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// TransferUseCase moves funds between two wallets atomically.
//
// Flow:
// 1. Reject when the service is in read-only mode
// 2. Validate inputs; source and destination must differ
// 3. In one transaction: idempotency pre-check keyed to the source wallet,
//    lock both wallets in ascending id order, debit source, credit
//    destination, write the TRANSFER_OUT/TRANSFER_IN ledger pair and one
//    FundsTransferred outbox row per side
// 4. A duplicate reference replays the recorded pair
// 5. After commit, invalidate both cache entries (best-effort)
//
// Invariants:
// - both wallet updates and both ledger rows commit or none do
// - the pair shares one correlation id; the client reference lives on the
//   source row only
// - ascending-id lock order prevents deadlock between opposite transfers
type TransferUseCase struct {
	walletRepo      ports.WalletRepository
	transactionRepo ports.TransactionRepository
	eventStore      EventStore
	cache           ports.WalletCache
	degradation     ports.DegradationState
	uow             ports.UnitOfWork
}

// NewTransferUseCase creates the use case.
func NewTransferUseCase(
	walletRepo ports.WalletRepository,
	transactionRepo ports.TransactionRepository,
	eventStore EventStore,
	cache ports.WalletCache,
	degradation ports.DegradationState,
	uow ports.UnitOfWork,
) *TransferUseCase {
	return &TransferUseCase{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		eventStore:      eventStore,
		cache:           cache,
		degradation:     degradation,
		uow:             uow,
	}
}

// Execute runs the transfer.
func (uc *TransferUseCase) Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResultDTO, error) {
	if uc.degradation.ReadOnly() {
		return nil, errors.NewServiceDegraded(
			errors.DegradationReadOnly, dtos.CommandTransfer, "service is in read-only mode")
	}

	sourceID, amount, err := parseMutationInputs(cmd.SourceWalletID, cmd.Amount, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}
	destinationID, err := uuid.Parse(cmd.DestinationWalletID)
	if err != nil {
		return nil, errors.ValidationError{
			Field:   "destination_wallet_id",
			Message: "invalid UUID format",
		}
	}
	if sourceID == destinationID {
		return nil, errors.NewInvalidTransfer("source and destination wallets must differ")
	}

	metrics.WriteStarted()
	defer metrics.WriteFinished()

	var (
		result   *dtos.TransferResultDTO
		replayed bool
	)

	err = uc.uow.Execute(ctx, func(txCtx context.Context) error {
		// 1. Idempotent replay keyed to the source wallet
		existing, err := uc.transactionRepo.FindByReference(txCtx, sourceID, cmd.ReferenceID)
		if err != nil {
			return fmt.Errorf("failed to check reference: %w", err)
		}
		if existing != nil {
			dto, err := uc.buildReplay(txCtx, existing)
			if err != nil {
				return err
			}
			result, replayed = dto, true
			return nil
		}

		// 2. Lock both wallets in ascending id order
		firstID, secondID := sourceID, destinationID
		if bytes.Compare(firstID[:], secondID[:]) > 0 {
			firstID, secondID = secondID, firstID
		}

		first, err := uc.walletRepo.FindByID(txCtx, firstID)
		if err != nil {
			return transferLoadError(err, firstID, sourceID)
		}
		second, err := uc.walletRepo.FindByID(txCtx, secondID)
		if err != nil {
			return transferLoadError(err, secondID, sourceID)
		}

		source, destination := first, second
		if firstID != sourceID {
			source, destination = second, first
		}

		// 3. Move the funds; either side failing aborts everything
		if err := source.Withdraw(amount); err != nil {
			return err
		}
		if err := destination.Deposit(amount); err != nil {
			return err
		}

		// 4. Ledger pair sharing one correlation id
		out, in, err := entities.NewTransferPair(sourceID, destinationID, amount, cmd.ReferenceID)
		if err != nil {
			return err
		}

		// 5. Persist: two wallet updates, two ledger rows
		if err := uc.walletRepo.Update(txCtx, source); err != nil {
			return fmt.Errorf("failed to update source wallet: %w", err)
		}
		if err := uc.walletRepo.Update(txCtx, destination); err != nil {
			return fmt.Errorf("failed to update destination wallet: %w", err)
		}
		if err := uc.transactionRepo.Insert(txCtx, out); err != nil {
			return err
		}
		if err := uc.transactionRepo.Insert(txCtx, in); err != nil {
			return fmt.Errorf("failed to insert credit-side transaction: %w", err)
		}

		// 6. One outbox event per side, owned by its wallet so per-wallet
		// ordering in the event log holds
		outEvent := events.NewFundsTransferred(
			sourceID, destinationID, out.ID(), out.CorrelationID(),
			events.TransferDirectionOut, amount, cmd.ReferenceID, source.Balance())
		if err := uc.eventStore.StoreDomainEvent(txCtx, outEvent); err != nil {
			return fmt.Errorf("failed to store FundsTransferred(OUT) event: %w", err)
		}
		inEvent := events.NewFundsTransferred(
			destinationID, sourceID, in.ID(), in.CorrelationID(),
			events.TransferDirectionIn, amount, "", destination.Balance())
		if err := uc.eventStore.StoreDomainEvent(txCtx, inEvent); err != nil {
			return fmt.Errorf("failed to store FundsTransferred(IN) event: %w", err)
		}

		dto := dtos.ToTransferResultDTO(source, destination, out)
		result = &dto
		return nil
	})

	if err != nil {
		if errors.IsDuplicateReference(err) {
			return uc.replayTransfer(ctx, sourceID, cmd.ReferenceID)
		}
		return nil, err
	}

	if !replayed {
		metrics.RecordTransaction(string(entities.TransactionTypeTransferOut))
		metrics.RecordTransaction(string(entities.TransactionTypeTransferIn))
		_ = uc.cache.Invalidate(ctx, sourceID)
		_ = uc.cache.Invalidate(ctx, destinationID)
	}

	return result, nil
}

// replayTransfer rebuilds the response for a reference that lost the
// insert race, outside the rolled-back transaction.
func (uc *TransferUseCase) replayTransfer(ctx context.Context, sourceID uuid.UUID, referenceID string) (*dtos.TransferResultDTO, error) {
	existing, err := uc.transactionRepo.FindByReference(ctx, sourceID, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded transaction: %w", err)
	}
	if existing == nil {
		return nil, errors.NewInternal("duplicate reference reported but no transaction recorded", nil)
	}
	return uc.buildReplay(ctx, existing)
}

// buildReplay assembles the transfer response from the recorded debit-side
// row and the current state of both wallets.
func (uc *TransferUseCase) buildReplay(ctx context.Context, out *entities.Transaction) (*dtos.TransferResultDTO, error) {
	counterparty := out.CounterpartyWalletID()
	if out.Type() != entities.TransactionTypeTransferOut || counterparty == nil {
		// The reference was spent by a deposit or withdrawal; replaying it
		// as a transfer has no meaningful shape.
		return nil, errors.NewInvalidTransfer("reference_id was already used by a non-transfer operation")
	}

	source, err := uc.walletRepo.FindByID(ctx, out.WalletID())
	if err != nil {
		return nil, fmt.Errorf("failed to load source wallet: %w", err)
	}
	destination, err := uc.walletRepo.FindByID(ctx, *counterparty)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination wallet: %w", err)
	}

	dto := dtos.ToTransferResultDTO(source, destination, out)
	return &dto, nil
}

// transferLoadError tags a wallet load failure with the side it hit.
func transferLoadError(err error, id, sourceID uuid.UUID) error {
	side := "destination"
	if id == sourceID {
		side = "source"
	}
	return fmt.Errorf("%s wallet %s: %w", side, id, err)
}
