package ports

import (
	"context"
	"errors"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/google/uuid"
)

// ErrCacheMiss reports that the cache holds no entry for the key. A miss
// is the expected cold path, not a failure.
var ErrCacheMiss = errors.New("wallet cache: miss")

// WalletCache is the read-side cache for wallet snapshots. Entries expire
// on a TTL owned by the implementation; writers invalidate after commit.
//
// The cache is an optimization only: every method may fail without
// affecting correctness, and callers treat failures as misses.
type WalletCache interface {
	// Get returns the cached wallet or ErrCacheMiss.
	Get(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// Put stores a wallet snapshot under the configured TTL.
	Put(ctx context.Context, wallet *entities.Wallet) error

	// Invalidate drops the entry for the wallet, if any.
	Invalidate(ctx context.Context, id uuid.UUID) error

	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
}
