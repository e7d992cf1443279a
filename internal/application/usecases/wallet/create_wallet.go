// Package wallet contains the use cases behind the command and query bus:
// the four mutations (create, deposit, withdraw, transfer) and the two
// reads (current state, historical balance).
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

// EventStore persists domain events on the caller's transaction so they
// commit atomically with the state change that raised them (transactional
// outbox write side).
type EventStore interface {
	StoreDomainEvent(ctx context.Context, event events.DomainEvent) error
}

// CreateWalletUseCase opens a new wallet for a user.
//
// Flow:
// 1. Reject when the service is in read-only mode
// 2. Create the Wallet entity (ACTIVE, zero balance, version 1)
// 3. Insert it together with its WalletCreated outbox row in one transaction
//
// Business rules:
// - user_id is an opaque non-empty owner reference, not verified here
// - a user may hold any number of wallets, so there is no duplicate check
//   and no idempotency reference on create
type CreateWalletUseCase struct {
	walletRepo  ports.WalletRepository
	eventStore  EventStore
	degradation ports.DegradationState
	uow         ports.UnitOfWork
}

// NewCreateWalletUseCase creates the use case.
func NewCreateWalletUseCase(
	walletRepo ports.WalletRepository,
	eventStore EventStore,
	degradation ports.DegradationState,
	uow ports.UnitOfWork,
) *CreateWalletUseCase {
	return &CreateWalletUseCase{
		walletRepo:  walletRepo,
		eventStore:  eventStore,
		degradation: degradation,
		uow:         uow,
	}
}

// Execute creates the wallet.
func (uc *CreateWalletUseCase) Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error) {
	if uc.degradation.ReadOnly() {
		return nil, errors.NewServiceDegraded(
			errors.DegradationReadOnly, dtos.CommandCreateWallet, "service is in read-only mode")
	}

	metrics.WriteStarted()
	defer metrics.WriteFinished()

	var result *dtos.WalletDTO

	err := uc.uow.Execute(ctx, func(txCtx context.Context) error {
		// 1. Create the domain entity (validates user_id)
		wallet, err := entities.NewWallet(cmd.UserID)
		if err != nil {
			return err
		}

		// 2. Persist
		if err := uc.walletRepo.Insert(txCtx, wallet); err != nil {
			return fmt.Errorf("failed to insert wallet: %w", err)
		}

		// 3. Outbox row commits together with the insert
		event := events.NewWalletCreated(wallet.ID(), wallet.UserID(), wallet.Balance())
		if err := uc.eventStore.StoreDomainEvent(txCtx, event); err != nil {
			return fmt.Errorf("failed to store WalletCreated event: %w", err)
		}

		dto := dtos.ToWalletDTO(wallet)
		result = &dto
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWalletCreated()
	return result, nil
}
