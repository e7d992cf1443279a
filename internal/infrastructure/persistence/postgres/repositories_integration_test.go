//go:build integration

// Integration tests for the PostgreSQL repositories, backed by a
// testcontainers-managed instance.
//
// Run with:
//
//	go test -tags=integration ./internal/infrastructure/persistence/postgres/...
//
// Requires a running Docker daemon.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Haleralex/walletcore/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// ============================================
// Test helpers
// ============================================

type testContainer struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

// Shared container for all tests in the package.
var sharedTestContainer *testContainer

func setupSharedTestDB(t *testing.T) *testContainer {
	t.Helper()

	if sharedTestContainer != nil {
		cleanupTables(t, sharedTestContainer.pool)
		return sharedTestContainer
	}

	ctx := context.Background()

	migrationsPath := filepath.Join("..", "..", "..", "..", "migrations")

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "000001_create_wallets.up.sql"),
			filepath.Join(migrationsPath, "000002_create_transactions.up.sql"),
			filepath.Join(migrationsPath, "000003_create_outbox_events.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	sharedTestContainer = &testContainer{container: container, pool: pool}
	return sharedTestContainer
}

func cleanupTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	// Order matters because of the wallet foreign key.
	for _, table := range []string{"outbox_events", "transactions", "wallets"} {
		_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("warning: failed to cleanup %s: %v", table, err)
		}
	}
}

func mustInsertWallet(t *testing.T, repo *WalletRepository, userID string) *entities.Wallet {
	t.Helper()

	wallet, err := entities.NewWallet(userID)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), wallet))
	return wallet
}

// ============================================
// WalletRepository
// ============================================

func TestWalletRepository_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	repo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("InsertAndFind", func(t *testing.T) {
		wallet := mustInsertWallet(t, repo, "user-insert")

		loaded, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)

		assert.Equal(t, wallet.ID(), loaded.ID())
		assert.Equal(t, "user-insert", loaded.UserID())
		assert.Equal(t, entities.WalletStatusActive, loaded.Status())
		assert.Equal(t, "0.0000", loaded.Balance().String())
		assert.Equal(t, int64(1), loaded.Version())
	})

	t.Run("BalanceRoundTrip", func(t *testing.T) {
		wallet := mustInsertWallet(t, repo, "user-roundtrip")

		require.NoError(t, wallet.Deposit(valueobjects.MustMoney("123456789.9999")))
		require.NoError(t, repo.Update(ctx, wallet))

		loaded, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "123456789.9999", loaded.Balance().String())

		require.NoError(t, loaded.Deposit(valueobjects.MustMoney("0.0001")))
		require.NoError(t, repo.Update(ctx, loaded))

		reloaded, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "123456790.0000", reloaded.Balance().String())
	})

	t.Run("OptimisticLockConflict", func(t *testing.T) {
		wallet := mustInsertWallet(t, repo, "user-lock")

		stale, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)

		// First writer wins.
		require.NoError(t, wallet.Deposit(valueobjects.MustMoney("10")))
		require.NoError(t, repo.Update(ctx, wallet))

		// Second writer holds the old version.
		require.NoError(t, stale.Deposit(valueobjects.MustMoney("20")))
		err = repo.Update(ctx, stale)
		assert.True(t, domainerrors.IsOptimisticLock(err), "expected optimistic lock error, got %v", err)

		loaded, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "10.0000", loaded.Balance().String())
	})

	t.Run("FindMissing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domainerrors.ErrWalletNotFound)
	})

	t.Run("ReadRepositorySeesCommittedState", func(t *testing.T) {
		wallet := mustInsertWallet(t, repo, "user-replica")

		readRepo := NewWalletReadRepository(tc.pool)
		loaded, err := readRepo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, wallet.ID(), loaded.ID())
	})
}

// ============================================
// TransactionRepository
// ============================================

func TestTransactionRepository_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	walletRepo := NewWalletRepository(tc.pool)
	repo := NewTransactionRepository(tc.pool)
	ctx := context.Background()

	t.Run("InsertAndFindByReference", func(t *testing.T) {
		wallet := mustInsertWallet(t, walletRepo, "tx-user-1")

		tx, err := entities.NewTransaction(wallet.ID(), entities.TransactionTypeDeposit,
			valueobjects.MustMoney("55.5"), "dep-1")
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, tx))

		found, err := repo.FindByReference(ctx, wallet.ID(), "dep-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, tx.ID(), found.ID())
		assert.Equal(t, "55.5000", found.Amount().String())
		assert.Equal(t, tx.ID(), found.CorrelationID())

		missing, err := repo.FindByReference(ctx, wallet.ID(), "unused-ref")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("DuplicateReferenceRejected", func(t *testing.T) {
		wallet := mustInsertWallet(t, walletRepo, "tx-user-2")

		first, err := entities.NewTransaction(wallet.ID(), entities.TransactionTypeDeposit,
			valueobjects.MustMoney("10"), "ref-dup")
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, first))

		second, err := entities.NewTransaction(wallet.ID(), entities.TransactionTypeWithdrawal,
			valueobjects.MustMoney("5"), "ref-dup")
		require.NoError(t, err)

		err = repo.Insert(ctx, second)
		assert.True(t, domainerrors.IsDuplicateReference(err), "expected duplicate reference, got %v", err)
	})

	t.Run("SameReferenceDifferentWallets", func(t *testing.T) {
		walletA := mustInsertWallet(t, walletRepo, "tx-user-3a")
		walletB := mustInsertWallet(t, walletRepo, "tx-user-3b")

		txA, err := entities.NewTransaction(walletA.ID(), entities.TransactionTypeDeposit,
			valueobjects.MustMoney("1"), "shared-ref")
		require.NoError(t, err)
		txB, err := entities.NewTransaction(walletB.ID(), entities.TransactionTypeDeposit,
			valueobjects.MustMoney("2"), "shared-ref")
		require.NoError(t, err)

		assert.NoError(t, repo.Insert(ctx, txA))
		assert.NoError(t, repo.Insert(ctx, txB))
	})

	t.Run("TransferCreditLegCarriesNoReference", func(t *testing.T) {
		source := mustInsertWallet(t, walletRepo, "tx-user-4a")
		dest := mustInsertWallet(t, walletRepo, "tx-user-4b")

		out, in, err := entities.NewTransferPair(source.ID(), dest.ID(),
			valueobjects.MustMoney("25"), "xfer-ref")
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, out))
		require.NoError(t, repo.Insert(ctx, in))

		// The client reference only binds the debit leg.
		found, err := repo.FindByReference(ctx, dest.ID(), "xfer-ref")
		require.NoError(t, err)
		assert.Nil(t, found)

		// A second inbound transfer to the same wallet must not collide.
		out2, in2, err := entities.NewTransferPair(source.ID(), dest.ID(),
			valueobjects.MustMoney("5"), "xfer-ref-2")
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, out2))
		assert.NoError(t, repo.Insert(ctx, in2))
	})

	t.Run("ListCompletedUpTo", func(t *testing.T) {
		wallet := mustInsertWallet(t, walletRepo, "tx-user-5")

		tx1, _ := entities.NewTransaction(wallet.ID(), entities.TransactionTypeDeposit,
			valueobjects.MustMoney("100"), "h-1")
		require.NoError(t, repo.Insert(ctx, tx1))

		time.Sleep(10 * time.Millisecond)
		cutoff := time.Now().UTC()
		time.Sleep(10 * time.Millisecond)

		tx2, _ := entities.NewTransaction(wallet.ID(), entities.TransactionTypeWithdrawal,
			valueobjects.MustMoney("30"), "h-2")
		require.NoError(t, repo.Insert(ctx, tx2))

		upToCutoff, err := repo.ListCompletedUpTo(ctx, wallet.ID(), cutoff)
		require.NoError(t, err)
		require.Len(t, upToCutoff, 1)
		assert.Equal(t, tx1.ID(), upToCutoff[0].ID())

		all, err := repo.ListCompletedUpTo(ctx, wallet.ID(), time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, tx1.ID(), all[0].ID(), "replay order must be oldest first")
		assert.Equal(t, tx2.ID(), all[1].ID())
	})
}

// ============================================
// OutboxRepository
// ============================================

func TestOutboxRepository_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	repo := NewOutboxRepository(tc.pool)
	ctx := context.Background()

	t.Run("SaveAndDrain", func(t *testing.T) {
		event, err := entities.NewOutboxEvent(uuid.New(), "funds.deposited", []byte(`{"k":"v"}`))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, event))

		pending, err := repo.FindUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, event.ID(), pending[0].ID())
		assert.JSONEq(t, `{"k":"v"}`, string(pending[0].Payload()))

		require.NoError(t, repo.MarkPublished(ctx, event.ID(), time.Now().UTC()))

		drained, err := repo.FindUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, drained)
	})

	t.Run("MarkPublishedIsIdempotent", func(t *testing.T) {
		event, err := entities.NewOutboxEvent(uuid.New(), "wallet.created", []byte(`{}`))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, event))

		first := time.Now().UTC()
		require.NoError(t, repo.MarkPublished(ctx, event.ID(), first))
		require.NoError(t, repo.MarkPublished(ctx, event.ID(), first.Add(time.Hour)))

		var publishedAt time.Time
		err = tc.pool.QueryRow(ctx,
			"SELECT published_at FROM outbox_events WHERE id = $1", event.ID()).Scan(&publishedAt)
		require.NoError(t, err)
		assert.WithinDuration(t, first, publishedAt, time.Second)
	})

	t.Run("MarkFailedKeepsRowPending", func(t *testing.T) {
		event, err := entities.NewOutboxEvent(uuid.New(), "funds.withdrawn", []byte(`{}`))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, event))

		require.NoError(t, repo.MarkFailed(ctx, event.ID(), "nats: timeout"))
		require.NoError(t, repo.MarkFailed(ctx, event.ID(), "nats: no responders"))

		pending, err := repo.FindUnpublished(ctx, 10)
		require.NoError(t, err)

		var found *entities.OutboxEvent
		for _, e := range pending {
			if e.ID() == event.ID() {
				found = e
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, 2, found.Attempts())
		assert.Equal(t, "nats: no responders", found.LastError())
	})

	t.Run("DrainOrderIsOldestFirst", func(t *testing.T) {
		cleanupTables(t, tc.pool)

		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			event, err := entities.NewOutboxEvent(uuid.New(), "wallet.created", []byte(`{}`))
			require.NoError(t, err)
			require.NoError(t, repo.Save(ctx, event))
			ids = append(ids, event.ID())
			time.Sleep(5 * time.Millisecond)
		}

		pending, err := repo.FindUnpublished(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, ids[0], pending[0].ID())
		assert.Equal(t, ids[1], pending[1].ID())
	})
}

// ============================================
// UnitOfWork
// ============================================

func TestUnitOfWork_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	walletRepo := NewWalletRepository(tc.pool)
	txRepo := NewTransactionRepository(tc.pool)
	uow := NewUnitOfWork(tc.pool)
	ctx := context.Background()

	t.Run("CommitPersistsAllWrites", func(t *testing.T) {
		wallet := mustInsertWallet(t, walletRepo, "uow-user-1")

		err := uow.Execute(ctx, func(txCtx context.Context) error {
			loaded, err := walletRepo.FindByID(txCtx, wallet.ID())
			if err != nil {
				return err
			}
			if err := loaded.Deposit(valueobjects.MustMoney("42")); err != nil {
				return err
			}
			if err := walletRepo.Update(txCtx, loaded); err != nil {
				return err
			}
			tx, err := entities.NewTransaction(loaded.ID(), entities.TransactionTypeDeposit,
				valueobjects.MustMoney("42"), "uow-dep-1")
			if err != nil {
				return err
			}
			return txRepo.Insert(txCtx, tx)
		})
		require.NoError(t, err)

		loaded, err := walletRepo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "42.0000", loaded.Balance().String())

		recorded, err := txRepo.FindByReference(ctx, wallet.ID(), "uow-dep-1")
		require.NoError(t, err)
		assert.NotNil(t, recorded)
	})

	t.Run("ErrorRollsBackAllWrites", func(t *testing.T) {
		wallet := mustInsertWallet(t, walletRepo, "uow-user-2")
		boom := errors.New("boom")

		err := uow.Execute(ctx, func(txCtx context.Context) error {
			loaded, err := walletRepo.FindByID(txCtx, wallet.ID())
			if err != nil {
				return err
			}
			if err := loaded.Deposit(valueobjects.MustMoney("99")); err != nil {
				return err
			}
			if err := walletRepo.Update(txCtx, loaded); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		loaded, err := walletRepo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "0.0000", loaded.Balance().String(), "rolled back deposit must not persist")
		assert.Equal(t, int64(1), loaded.Version())
	})

	t.Run("NestedExecuteJoinsTransaction", func(t *testing.T) {
		wallet := mustInsertWallet(t, walletRepo, "uow-user-3")
		inner := errors.New("inner failure")

		err := uow.Execute(ctx, func(txCtx context.Context) error {
			loaded, err := walletRepo.FindByID(txCtx, wallet.ID())
			if err != nil {
				return err
			}
			if err := loaded.Deposit(valueobjects.MustMoney("7")); err != nil {
				return err
			}
			if err := walletRepo.Update(txCtx, loaded); err != nil {
				return err
			}
			// The nested call must run in the same transaction, so its
			// failure rolls back the outer write too.
			return uow.Execute(txCtx, func(context.Context) error {
				return inner
			})
		})
		assert.ErrorIs(t, err, inner)

		loaded, err := walletRepo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "0.0000", loaded.Balance().String())
	})
}
