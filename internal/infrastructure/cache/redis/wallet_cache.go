package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Haleralex/walletcore/internal/application/ports"
	"github.com/Haleralex/walletcore/internal/domain/entities"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.WalletCache = (*WalletCache)(nil)

// walletSnapshot is the stored JSON form of a wallet. The balance travels
// as its canonical decimal string.
type walletSnapshot struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Balance   string    `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletCache implements ports.WalletCache on Redis with a fixed TTL.
type WalletCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewWalletCache creates a cache adapter. Entries expire after ttl.
func NewWalletCache(client *goredis.Client, ttl time.Duration) *WalletCache {
	return &WalletCache{client: client, ttl: ttl}
}

func walletKey(id uuid.UUID) string {
	return "wallet:" + id.String()
}

// Get returns the cached wallet or ErrCacheMiss. An entry that fails to
// decode is dropped and reported as a miss rather than an error.
func (c *WalletCache) Get(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	data, err := c.client.Get(ctx, walletKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ports.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var snapshot walletSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		_ = c.client.Del(ctx, walletKey(id)).Err()
		return nil, ports.ErrCacheMiss
	}

	balance, err := valueobjects.NewMoney(snapshot.Balance)
	if err != nil {
		_ = c.client.Del(ctx, walletKey(id)).Err()
		return nil, ports.ErrCacheMiss
	}

	return entities.ReconstructWallet(
		snapshot.ID,
		snapshot.UserID,
		entities.WalletStatus(snapshot.Status),
		balance,
		snapshot.Version,
		snapshot.CreatedAt,
		snapshot.UpdatedAt,
	), nil
}

// Put stores a wallet snapshot under the configured TTL.
func (c *WalletCache) Put(ctx context.Context, wallet *entities.Wallet) error {
	snapshot := walletSnapshot{
		ID:        wallet.ID(),
		UserID:    wallet.UserID(),
		Status:    string(wallet.Status()),
		Balance:   wallet.Balance().String(),
		Version:   wallet.Version(),
		CreatedAt: wallet.CreatedAt(),
		UpdatedAt: wallet.UpdatedAt(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	if err := c.client.Set(ctx, walletKey(wallet.ID()), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	return nil
}

// Invalidate drops the wallet's entry. Deleting an absent key is fine.
func (c *WalletCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, walletKey(id)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (c *WalletCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
