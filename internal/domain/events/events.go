// Package events defines the domain events the service emits through the
// transactional outbox. Events are immutable facts about what happened.
//
// Pattern: Domain Events
// - Raised by write handlers after a successful state change
// - Persisted to the outbox in the same transaction as the change
// - Published to the event log by the outbox publisher, keyed by aggregate
package events

import (
	"encoding/json"
	"time"

	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID // wallet that raised this event
}

// BaseEvent provides the common identity fields for all events.
// Embedded in specific event types to avoid duplication.
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
}

func newBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now().UTC(),
		aggregateID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID {
	return e.eventID
}

func (e BaseEvent) EventType() string {
	return e.eventType
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e BaseEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

// Event types. The strings are part of the event log contract: stable,
// never reused.
const (
	EventTypeWalletCreated    = "wallet.created"
	EventTypeFundsDeposited   = "funds.deposited"
	EventTypeFundsWithdrawn   = "funds.withdrawn"
	EventTypeFundsTransferred = "funds.transferred"
)

// Transfer directions carried by FundsTransferred.
const (
	TransferDirectionOut = "OUT"
	TransferDirectionIn  = "IN"
)

// WalletCreated is raised when a new wallet is created.
type WalletCreated struct {
	BaseEvent
	WalletID uuid.UUID `json:"wallet_id"`
	UserID   string    `json:"user_id"`
	Balance  string    `json:"balance"`
}

func NewWalletCreated(walletID uuid.UUID, userID string, balance valueobjects.Money) *WalletCreated {
	return &WalletCreated{
		BaseEvent: newBaseEvent(EventTypeWalletCreated, walletID),
		WalletID:  walletID,
		UserID:    userID,
		Balance:   balance.String(),
	}
}

// FundsDeposited is raised when a deposit commits.
type FundsDeposited struct {
	BaseEvent
	WalletID      uuid.UUID `json:"wallet_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
	ReferenceID   string    `json:"reference_id"`
	BalanceAfter  string    `json:"balance_after"`
}

func NewFundsDeposited(
	walletID, transactionID uuid.UUID,
	amount valueobjects.Money,
	referenceID string,
	balanceAfter valueobjects.Money,
) *FundsDeposited {
	return &FundsDeposited{
		BaseEvent:     newBaseEvent(EventTypeFundsDeposited, walletID),
		WalletID:      walletID,
		TransactionID: transactionID,
		Amount:        amount.String(),
		ReferenceID:   referenceID,
		BalanceAfter:  balanceAfter.String(),
	}
}

// FundsWithdrawn is raised when a withdrawal commits.
type FundsWithdrawn struct {
	BaseEvent
	WalletID      uuid.UUID `json:"wallet_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
	ReferenceID   string    `json:"reference_id"`
	BalanceAfter  string    `json:"balance_after"`
}

func NewFundsWithdrawn(
	walletID, transactionID uuid.UUID,
	amount valueobjects.Money,
	referenceID string,
	balanceAfter valueobjects.Money,
) *FundsWithdrawn {
	return &FundsWithdrawn{
		BaseEvent:     newBaseEvent(EventTypeFundsWithdrawn, walletID),
		WalletID:      walletID,
		TransactionID: transactionID,
		Amount:        amount.String(),
		ReferenceID:   referenceID,
		BalanceAfter:  balanceAfter.String(),
	}
}

// FundsTransferred is raised once per side of a committed transfer, with
// the owning wallet as the aggregate so per-wallet log order holds.
type FundsTransferred struct {
	BaseEvent
	WalletID             uuid.UUID `json:"wallet_id"`
	CounterpartyWalletID uuid.UUID `json:"counterparty_wallet_id"`
	TransactionID        uuid.UUID `json:"transaction_id"`
	CorrelationID        uuid.UUID `json:"correlation_id"`
	Direction            string    `json:"direction"` // OUT or IN
	Amount               string    `json:"amount"`
	ReferenceID          string    `json:"reference_id"`
	BalanceAfter         string    `json:"balance_after"`
}

func NewFundsTransferred(
	walletID, counterpartyWalletID, transactionID, correlationID uuid.UUID,
	direction string,
	amount valueobjects.Money,
	referenceID string,
	balanceAfter valueobjects.Money,
) *FundsTransferred {
	return &FundsTransferred{
		BaseEvent:            newBaseEvent(EventTypeFundsTransferred, walletID),
		WalletID:             walletID,
		CounterpartyWalletID: counterpartyWalletID,
		TransactionID:        transactionID,
		CorrelationID:        correlationID,
		Direction:            direction,
		Amount:               amount.String(),
		ReferenceID:          referenceID,
		BalanceAfter:         balanceAfter.String(),
	}
}

// envelope is the stable wire form of every event payload. Consumers
// deduplicate on event_id.
type envelope struct {
	EventID     uuid.UUID `json:"event_id"`
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	AggregateID uuid.UUID `json:"aggregate_id"`
	Data        any       `json:"data"`
}

// Marshal serializes an event into its outbox payload form.
func Marshal(event DomainEvent) ([]byte, error) {
	return json.Marshal(envelope{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		OccurredAt:  event.OccurredAt(),
		AggregateID: event.AggregateID(),
		Data:        event,
	})
}
