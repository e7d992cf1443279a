package dtos

import (
	"time"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// ToWalletDTO converts a wallet aggregate into its API shape.
func ToWalletDTO(wallet *entities.Wallet) WalletDTO {
	return WalletDTO{
		ID:        wallet.ID().String(),
		UserID:    wallet.UserID(),
		Balance:   wallet.Balance().String(),
		Status:    string(wallet.Status()),
		Version:   wallet.Version(),
		CreatedAt: wallet.CreatedAt(),
		UpdatedAt: wallet.UpdatedAt(),
	}
}

// ToOperationResultDTO assembles the deposit/withdraw response.
func ToOperationResultDTO(wallet *entities.Wallet, transaction *entities.Transaction) OperationResultDTO {
	return OperationResultDTO{
		Wallet:        ToWalletDTO(wallet),
		TransactionID: transaction.ID().String(),
		ReferenceID:   transaction.ReferenceID(),
	}
}

// ToTransferResultDTO assembles the transfer response from the debit-side
// transaction and both post-transfer wallet states.
func ToTransferResultDTO(source, destination *entities.Wallet, outTx *entities.Transaction) TransferResultDTO {
	return TransferResultDTO{
		SourceWallet:      ToWalletDTO(source),
		DestinationWallet: ToWalletDTO(destination),
		TransactionID:     outTx.ID().String(),
		CorrelationID:     outTx.CorrelationID().String(),
		Amount:            outTx.Amount().String(),
		ReferenceID:       outTx.ReferenceID(),
	}
}

// ToHistoricalBalanceDTO wraps a replayed balance.
func ToHistoricalBalanceDTO(walletID string, balance valueobjects.Money, at time.Time) HistoricalBalanceDTO {
	return HistoricalBalanceDTO{
		WalletID:  walletID,
		Balance:   balance.String(),
		Timestamp: at,
	}
}
