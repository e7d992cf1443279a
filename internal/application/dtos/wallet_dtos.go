// Package dtos carries the command, query and response shapes crossing the
// application boundary. Monetary amounts travel as decimal strings.
package dtos

import "time"

// Bus routing names. Commands and queries register under these.
const (
	CommandCreateWallet = "wallet.create"
	CommandDeposit      = "wallet.deposit"
	CommandWithdraw     = "wallet.withdraw"
	CommandTransfer     = "wallet.transfer"

	QueryGetWallet         = "wallet.get"
	QueryHistoricalBalance = "wallet.historical_balance"
)

// ============================================
// Commands (write operations)
// ============================================

// CreateWalletCommand opens a new wallet for a user.
type CreateWalletCommand struct {
	UserID string `json:"user_id" validate:"required,max=255"`
}

func (CreateWalletCommand) CommandName() string { return CommandCreateWallet }

// DepositCommand credits a wallet. ReferenceID is the client-chosen
// idempotency reference: replays with the same (wallet, reference) return
// the original outcome.
type DepositCommand struct {
	WalletID    string `json:"wallet_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,money_amount"`
	ReferenceID string `json:"reference_id" validate:"required,max=255"`
}

func (DepositCommand) CommandName() string { return CommandDeposit }

// WithdrawCommand debits a wallet, subject to sufficient funds.
type WithdrawCommand struct {
	WalletID    string `json:"wallet_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,money_amount"`
	ReferenceID string `json:"reference_id" validate:"required,max=255"`
}

func (WithdrawCommand) CommandName() string { return CommandWithdraw }

// TransferCommand moves funds between two wallets atomically. The
// reference is scoped to the source wallet.
type TransferCommand struct {
	SourceWalletID      string `json:"source_wallet_id" validate:"required,uuid"`
	DestinationWalletID string `json:"destination_wallet_id" validate:"required,uuid"`
	Amount              string `json:"amount" validate:"required,money_amount"`
	ReferenceID         string `json:"reference_id" validate:"required,max=255"`
}

func (TransferCommand) CommandName() string { return CommandTransfer }

// ============================================
// Queries (read operations)
// ============================================

// GetWalletQuery fetches the current state of a wallet.
type GetWalletQuery struct {
	WalletID string `json:"wallet_id" validate:"required,uuid"`
}

func (GetWalletQuery) QueryName() string { return QueryGetWallet }

// HistoricalBalanceQuery reconstructs a wallet's balance as of Timestamp
// by replaying its completed ledger rows.
type HistoricalBalanceQuery struct {
	WalletID  string    `json:"wallet_id" validate:"required,uuid"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

func (HistoricalBalanceQuery) QueryName() string { return QueryHistoricalBalance }

// ============================================
// Response DTOs
// ============================================

// WalletDTO is the API representation of a wallet.
type WalletDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Balance   string    `json:"balance"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OperationResultDTO is returned by deposit and withdraw.
type OperationResultDTO struct {
	Wallet        WalletDTO `json:"wallet"`
	TransactionID string    `json:"transaction_id"`
	ReferenceID   string    `json:"reference_id"`
}

// TransferResultDTO is returned by transfer. TransactionID identifies the
// debit side; CorrelationID ties both ledger rows of the pair together.
type TransferResultDTO struct {
	SourceWallet      WalletDTO `json:"source_wallet"`
	DestinationWallet WalletDTO `json:"destination_wallet"`
	TransactionID     string    `json:"transaction_id"`
	CorrelationID     string    `json:"correlation_id"`
	Amount            string    `json:"amount"`
	ReferenceID       string    `json:"reference_id"`
}

// HistoricalBalanceDTO is the reconstructed balance at a point in time.
type HistoricalBalanceDTO struct {
	WalletID  string    `json:"wallet_id"`
	Balance   string    `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}
