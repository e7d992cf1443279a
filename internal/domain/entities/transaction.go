// Package entities - Transaction is the immutable audit record of a single
// balance change. The COMPLETED rows of a wallet reconstruct its balance
// from zero.
package entities

import (
	"time"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/google/uuid"
)

// TransactionType classifies the direction of a balance change.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
)

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal,
		TransactionTypeTransferOut, TransactionTypeTransferIn:
		return true
	default:
		return false
	}
}

// IsCredit reports whether the type adds to the balance in the
// historical fold.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeTransferIn
}

// IsDebit reports whether the type subtracts from the balance in the
// historical fold.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeTransferOut
}

// TransactionStatus - only COMPLETED rows affect the balance.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusRejected  TransactionStatus = "REJECTED"
)

// IsValid checks if the transaction status is valid.
func (s TransactionStatus) IsValid() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusRejected
}

// Transaction is a durable, immutable record of one balance change.
//
// For a transfer two rows are written, one per side, sharing a
// correlation id. The client-supplied reference id lives on the source
// row only; the destination row carries an empty reference and is tied
// to its twin by the correlation id.
type Transaction struct {
	id                   uuid.UUID
	walletID             uuid.UUID
	txType               TransactionType
	amount               valueobjects.Money
	referenceID          string     // empty on TRANSFER_IN rows
	counterpartyWalletID *uuid.UUID // set on transfer rows, nil otherwise
	correlationID        uuid.UUID  // equals id for single-sided operations
	status               TransactionStatus
	createdAt            time.Time
}

// NewTransaction creates an accepted (COMPLETED) single-sided transaction:
// a deposit or a withdrawal.
//
// Business rules:
// - type must be DEPOSIT or WITHDRAWAL (transfers use NewTransferPair)
// - amount must be positive
// - reference_id must be non-empty (it is the idempotency key)
func NewTransaction(
	walletID uuid.UUID,
	txType TransactionType,
	amount valueobjects.Money,
	referenceID string,
) (*Transaction, error) {
	if txType != TransactionTypeDeposit && txType != TransactionTypeWithdrawal {
		return nil, errors.ValidationError{
			Field:   "type",
			Message: "type must be DEPOSIT or WITHDRAWAL",
		}
	}
	if !amount.IsPositive() {
		return nil, errors.ValidationError{
			Field:   "amount",
			Message: "amount must be positive",
		}
	}
	if referenceID == "" {
		return nil, errors.ValidationError{
			Field:   "reference_id",
			Message: "reference_id is required",
		}
	}

	id := uuid.New()
	return &Transaction{
		id:            id,
		walletID:      walletID,
		txType:        txType,
		amount:        amount,
		referenceID:   referenceID,
		correlationID: id,
		status:        TransactionStatusCompleted,
		createdAt:     time.Now().UTC(),
	}, nil
}

// NewTransferPair creates the two accepted rows of a wallet-to-wallet
// transfer: TRANSFER_OUT on the source and TRANSFER_IN on the destination,
// sharing a fresh correlation id.
//
// Business rules:
// - source and destination must differ
// - amount must be positive
// - reference_id must be non-empty; it applies to the source row only
func NewTransferPair(
	sourceWalletID, destinationWalletID uuid.UUID,
	amount valueobjects.Money,
	referenceID string,
) (out *Transaction, in *Transaction, err error) {
	if sourceWalletID == destinationWalletID {
		return nil, nil, errors.NewInvalidTransfer("source and destination wallets must differ")
	}
	if !amount.IsPositive() {
		return nil, nil, errors.NewInvalidTransfer("amount must be positive")
	}
	if referenceID == "" {
		return nil, nil, errors.ValidationError{
			Field:   "reference_id",
			Message: "reference_id is required",
		}
	}

	correlationID := uuid.New()
	now := time.Now().UTC()

	src := sourceWalletID
	dst := destinationWalletID

	out = &Transaction{
		id:                   uuid.New(),
		walletID:             src,
		txType:               TransactionTypeTransferOut,
		amount:               amount,
		referenceID:          referenceID,
		counterpartyWalletID: &dst,
		correlationID:        correlationID,
		status:               TransactionStatusCompleted,
		createdAt:            now,
	}
	in = &Transaction{
		id:                   uuid.New(),
		walletID:             dst,
		txType:               TransactionTypeTransferIn,
		amount:               amount,
		referenceID:          "",
		counterpartyWalletID: &src,
		correlationID:        correlationID,
		status:               TransactionStatusCompleted,
		createdAt:            now,
	}
	return out, in, nil
}

// ReconstructTransaction rebuilds a Transaction from stored data.
// Used by repositories to hydrate entities; performs no validation.
func ReconstructTransaction(
	id, walletID uuid.UUID,
	txType TransactionType,
	amount valueobjects.Money,
	referenceID string,
	counterpartyWalletID *uuid.UUID,
	correlationID uuid.UUID,
	status TransactionStatus,
	createdAt time.Time,
) *Transaction {
	return &Transaction{
		id:                   id,
		walletID:             walletID,
		txType:               txType,
		amount:               amount,
		referenceID:          referenceID,
		counterpartyWalletID: counterpartyWalletID,
		correlationID:        correlationID,
		status:               status,
		createdAt:            createdAt,
	}
}

// Getters

func (t *Transaction) ID() uuid.UUID {
	return t.id
}

func (t *Transaction) WalletID() uuid.UUID {
	return t.walletID
}

func (t *Transaction) Type() TransactionType {
	return t.txType
}

func (t *Transaction) Amount() valueobjects.Money {
	return t.amount
}

// ReferenceID returns the client-supplied idempotency key.
// Empty on TRANSFER_IN rows.
func (t *Transaction) ReferenceID() string {
	return t.referenceID
}

// CounterpartyWalletID returns the other side of a transfer, nil otherwise.
// The returned pointer is a copy; the row stays immutable.
func (t *Transaction) CounterpartyWalletID() *uuid.UUID {
	if t.counterpartyWalletID == nil {
		return nil
	}
	id := *t.counterpartyWalletID
	return &id
}

func (t *Transaction) CorrelationID() uuid.UUID {
	return t.correlationID
}

func (t *Transaction) Status() TransactionStatus {
	return t.status
}

func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

// IsCompleted reports whether the row affects the balance.
func (t *Transaction) IsCompleted() bool {
	return t.status == TransactionStatusCompleted
}
