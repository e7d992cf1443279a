package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/errors"
)

// GetWalletUseCase serves the current state of a wallet, cache-aside:
// cache hit wins, otherwise the replica answers and the result is written
// back to the cache. Cache-bypass mode skips the cache entirely.
type GetWalletUseCase struct {
	readRepo    ports.WalletReadRepository
	cache       ports.WalletCache
	degradation ports.DegradationState
}

// NewGetWalletUseCase creates the use case.
func NewGetWalletUseCase(
	readRepo ports.WalletReadRepository,
	cache ports.WalletCache,
	degradation ports.DegradationState,
) *GetWalletUseCase {
	return &GetWalletUseCase{
		readRepo:    readRepo,
		cache:       cache,
		degradation: degradation,
	}
}

// Execute returns the wallet's current state.
func (uc *GetWalletUseCase) Execute(ctx context.Context, query dtos.GetWalletQuery) (*dtos.WalletDTO, error) {
	walletID, err := uuid.Parse(query.WalletID)
	if err != nil {
		return nil, errors.ValidationError{
			Field:   "wallet_id",
			Message: "invalid UUID format",
		}
	}

	bypass := uc.degradation.CacheBypass()

	// Cache errors count as misses: the replica stays the source of truth.
	if !bypass {
		if wallet, err := uc.cache.Get(ctx, walletID); err == nil {
			dto := dtos.ToWalletDTO(wallet)
			return &dto, nil
		}
	}

	wallet, err := uc.readRepo.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if !bypass {
		// Fire-and-forget populate; losing a Put only costs a future miss.
		_ = uc.cache.Put(ctx, wallet)
	}

	dto := dtos.ToWalletDTO(wallet)
	return &dto, nil
}
