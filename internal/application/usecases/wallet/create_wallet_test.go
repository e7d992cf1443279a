package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/events"
)

func TestCreateWalletUseCase_Success(t *testing.T) {
	// Arrange
	ctx := context.Background()

	var insertedWallet *entities.Wallet
	walletRepo := &mockWalletRepo{
		insertFunc: func(ctx context.Context, wallet *entities.Wallet) error {
			insertedWallet = wallet
			return nil
		},
	}
	eventStore := &mockEventStore{}
	uow := &mockUoW{}

	useCase := NewCreateWalletUseCase(walletRepo, eventStore, &mockDegradation{}, uow)

	cmd := dtos.CreateWalletCommand{UserID: "user-42"}

	// Act
	result, err := useCase.Execute(ctx, cmd)

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result == nil {
		t.Fatal("Expected result, got nil")
	}

	if result.UserID != "user-42" {
		t.Errorf("Expected UserID = user-42, got %s", result.UserID)
	}
	if result.Balance != "0.0000" {
		t.Errorf("Expected Balance = 0.0000, got %s", result.Balance)
	}
	if result.Status != string(entities.WalletStatusActive) {
		t.Errorf("Expected Status = %s, got %s", entities.WalletStatusActive, result.Status)
	}
	if result.Version != 1 {
		t.Errorf("Expected Version = 1, got %d", result.Version)
	}

	if insertedWallet == nil {
		t.Fatal("Expected wallet to be inserted")
	}
	if insertedWallet.ID().String() != result.ID {
		t.Errorf("Expected returned ID to match inserted wallet, got %s vs %s",
			result.ID, insertedWallet.ID())
	}

	if len(eventStore.stored) != 1 {
		t.Fatalf("Expected 1 outbox event, got %d", len(eventStore.stored))
	}
	if eventStore.stored[0].EventType() != events.EventTypeWalletCreated {
		t.Errorf("Expected event type %s, got %s",
			events.EventTypeWalletCreated, eventStore.stored[0].EventType())
	}
	if eventStore.stored[0].AggregateID() != insertedWallet.ID() {
		t.Errorf("Expected event aggregate to be the new wallet")
	}
}

func TestCreateWalletUseCase_EmptyUserID(t *testing.T) {
	// Arrange
	ctx := context.Background()
	useCase := NewCreateWalletUseCase(&mockWalletRepo{}, &mockEventStore{}, &mockDegradation{}, &mockUoW{})

	// Act
	result, err := useCase.Execute(ctx, dtos.CreateWalletCommand{UserID: ""})

	// Assert
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}
	if !domainErrors.IsValidation(err) {
		t.Errorf("Expected ValidationError, got %T: %v", err, err)
	}
	if result != nil {
		t.Errorf("Expected nil result, got %+v", result)
	}
}

func TestCreateWalletUseCase_ReadOnlyMode(t *testing.T) {
	// Arrange
	ctx := context.Background()
	uow := &mockUoW{}
	useCase := NewCreateWalletUseCase(
		&mockWalletRepo{}, &mockEventStore{}, &mockDegradation{readOnly: true}, uow)

	// Act
	result, err := useCase.Execute(ctx, dtos.CreateWalletCommand{UserID: "user-42"})

	// Assert
	if err == nil {
		t.Fatal("Expected ServiceDegraded error, got nil")
	}
	var degraded *domainErrors.ServiceDegradedError
	if !errors.As(err, &degraded) {
		t.Fatalf("Expected ServiceDegradedError, got %T: %v", err, err)
	}
	if degraded.DegradationCode != domainErrors.DegradationReadOnly {
		t.Errorf("Expected degradation code %s, got %s",
			domainErrors.DegradationReadOnly, degraded.DegradationCode)
	}
	if result != nil {
		t.Errorf("Expected nil result, got %+v", result)
	}
	if uow.calls != 0 {
		t.Errorf("Expected no transaction to start in read-only mode, got %d", uow.calls)
	}
}

func TestCreateWalletUseCase_InsertFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	walletRepo := &mockWalletRepo{
		insertFunc: func(ctx context.Context, wallet *entities.Wallet) error {
			return domainErrors.NewTransient("insert wallet", context.DeadlineExceeded)
		},
	}
	useCase := NewCreateWalletUseCase(walletRepo, &mockEventStore{}, &mockDegradation{}, &mockUoW{})

	// Act
	result, err := useCase.Execute(ctx, dtos.CreateWalletCommand{UserID: "user-42"})

	// Assert
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !domainErrors.IsTransient(err) {
		t.Errorf("Expected transient error to propagate, got %T: %v", err, err)
	}
	if result != nil {
		t.Errorf("Expected nil result, got %+v", result)
	}
}
