// Package entities - Wallet is the core entity of the service.
// It owns the balance invariants and the optimistic-locking version.
package entities

import (
	"time"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/google/uuid"
)

// WalletStatus represents the operational status of a wallet.
// Transitions are monotone: ACTIVE -> FROZEN -> CLOSED, never backwards.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE" // Normal operations allowed
	WalletStatusFrozen WalletStatus = "FROZEN" // Mutations rejected, reads allowed
	WalletStatusClosed WalletStatus = "CLOSED" // Permanently closed
)

// IsValid checks if the wallet status is valid.
func (s WalletStatus) IsValid() bool {
	switch s {
	case WalletStatusActive, WalletStatusFrozen, WalletStatusClosed:
		return true
	default:
		return false
	}
}

// rank orders statuses for the monotone-transition check.
func (s WalletStatus) rank() int {
	switch s {
	case WalletStatusActive:
		return 0
	case WalletStatusFrozen:
		return 1
	case WalletStatusClosed:
		return 2
	default:
		return -1
	}
}

// Wallet represents a monetary balance owned by one user.
// A user can have multiple wallets.
//
// Entity Pattern:
// - Has identity (ID)
// - Enforces invariants: balance >= 0, monotone status, strictly
//   increasing version on every persisted change
// - Rich behavior, not just data
type Wallet struct {
	id     uuid.UUID
	userID string // opaque owner reference
	status WalletStatus

	balance valueobjects.Money
	version int64 // optimistic locking version

	createdAt time.Time
	updatedAt time.Time
}

// NewWallet creates a new wallet for a user.
//
// Business rules:
// - user_id must be non-empty (otherwise opaque to the domain)
// - new wallets start ACTIVE with a zero balance at version 1
func NewWallet(userID string) (*Wallet, error) {
	if userID == "" {
		return nil, errors.ValidationError{
			Field:   "user_id",
			Message: "user_id is required",
		}
	}

	now := time.Now().UTC()
	return &Wallet{
		id:        uuid.New(),
		userID:    userID,
		status:    WalletStatusActive,
		balance:   valueobjects.Zero(),
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructWallet rebuilds a Wallet from stored data.
// Used by repositories to hydrate entities; performs no validation.
func ReconstructWallet(
	id uuid.UUID,
	userID string,
	status WalletStatus,
	balance valueobjects.Money,
	version int64,
	createdAt, updatedAt time.Time,
) *Wallet {
	return &Wallet{
		id:        id,
		userID:    userID,
		status:    status,
		balance:   balance,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// Getters

func (w *Wallet) ID() uuid.UUID {
	return w.id
}

func (w *Wallet) UserID() string {
	return w.userID
}

func (w *Wallet) Status() WalletStatus {
	return w.status
}

func (w *Wallet) Balance() valueobjects.Money {
	return w.balance
}

func (w *Wallet) Version() int64 {
	return w.version
}

func (w *Wallet) CreatedAt() time.Time {
	return w.createdAt
}

func (w *Wallet) UpdatedAt() time.Time {
	return w.updatedAt
}

// Business Methods

// IsActive returns true if the wallet permits mutation.
func (w *Wallet) IsActive() bool {
	return w.status == WalletStatusActive
}

// ensureActive rejects mutations on non-ACTIVE wallets.
func (w *Wallet) ensureActive() error {
	if w.status != WalletStatusActive {
		return errors.NewWalletStatusViolation(w.id.String(), string(w.status))
	}
	return nil
}

// Deposit adds funds to the wallet.
//
// Business rules:
// - wallet must be ACTIVE
// - amount must be positive
// - version is incremented (optimistic locking)
func (w *Wallet) Deposit(amount valueobjects.Money) error {
	if err := w.ensureActive(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.ValidationError{
			Field:   "amount",
			Message: "amount must be positive",
		}
	}

	w.balance = w.balance.Add(amount)
	w.version++
	w.updatedAt = time.Now().UTC()

	return nil
}

// Withdraw subtracts funds from the wallet.
//
// Business rules:
// - wallet must be ACTIVE
// - amount must be positive
// - post-condition balance >= 0, otherwise InsufficientFunds with the
//   available/requested amounts
func (w *Wallet) Withdraw(amount valueobjects.Money) error {
	if err := w.ensureActive(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.ValidationError{
			Field:   "amount",
			Message: "amount must be positive",
		}
	}

	if w.balance.LessThan(amount) {
		return errors.NewInsufficientFunds(w.id.String(), w.balance, amount)
	}

	newBalance, err := w.balance.Subtract(amount)
	if err != nil {
		// LessThan above makes this unreachable; kept as an invariant guard.
		return errors.NewInsufficientFunds(w.id.String(), w.balance, amount)
	}

	w.balance = newBalance
	w.version++
	w.updatedAt = time.Now().UTC()

	return nil
}

// Status Management

// transitionTo enforces the monotone status order.
func (w *Wallet) transitionTo(next WalletStatus) error {
	if next.rank() <= w.status.rank() {
		return errors.NewWalletStatusViolation(w.id.String(), string(w.status))
	}
	w.status = next
	w.version++
	w.updatedAt = time.Now().UTC()
	return nil
}

// Freeze suspends all mutations on the wallet. Irreversible except by Close.
func (w *Wallet) Freeze() error {
	return w.transitionTo(WalletStatusFrozen)
}

// Close permanently closes the wallet.
// Business rule: only a zero-balance wallet can be closed.
func (w *Wallet) Close() error {
	if !w.balance.IsZero() {
		return errors.NewDomainError(
			errors.CodeWalletStatusViolation,
			"cannot close wallet with non-zero balance",
			nil,
		)
	}
	return w.transitionTo(WalletStatusClosed)
}
