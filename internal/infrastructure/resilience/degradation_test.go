package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/application/bus"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

func testManager(cfg DegradationConfig) *Manager {
	return NewManager(cfg, testLogger())
}

func TestManager_StartsHealthy(t *testing.T) {
	m := testManager(DefaultDegradationConfig())

	assert.False(t, m.ReadOnly())
	assert.False(t, m.CacheBypass())
	assert.False(t, m.EventProcessingDegraded())
	assert.Equal(t, 100, m.HealthScore())
	assert.Equal(t, "healthy", m.Summary())
}

func TestManager_HealthScoreWeights(t *testing.T) {
	m := testManager(DefaultDegradationConfig())

	m.SetCacheBypass(true)
	assert.Equal(t, 80, m.HealthScore())

	m.SetEventProcessingDegraded(true)
	assert.Equal(t, 50, m.HealthScore())

	m.SetReadOnly(true, "test")
	assert.Equal(t, 0, m.HealthScore())
	assert.Equal(t, "degraded: read_only, cache_bypass, event_processing", m.Summary())

	m.SetReadOnly(false, "test")
	m.SetCacheBypass(false)
	m.SetEventProcessingDegraded(false)
	assert.Equal(t, 100, m.HealthScore())
}

func TestManager_Snapshot(t *testing.T) {
	m := testManager(DefaultDegradationConfig())
	m.SetCacheBypass(true)

	snap := m.Snapshot()

	assert.False(t, snap.ReadOnly)
	assert.True(t, snap.CacheBypass)
	assert.False(t, snap.EventProcessingDegraded)
	assert.Equal(t, 80, snap.HealthScore)
	assert.Equal(t, "degraded: cache_bypass", snap.Summary)
}

func TestManager_WriteExhaustionsEnterReadOnly(t *testing.T) {
	cfg := DefaultDegradationConfig()
	cfg.FailureThreshold = 3
	m := testManager(cfg)

	m.ReportWriteExhaustion("deposit")
	m.ReportWriteExhaustion("withdraw")
	assert.False(t, m.ReadOnly(), "below the threshold the mode must stay off")

	m.ReportWriteExhaustion("deposit")
	assert.True(t, m.ReadOnly())
}

func TestManager_WriteSuccessResetsTheStreak(t *testing.T) {
	cfg := DefaultDegradationConfig()
	cfg.FailureThreshold = 3
	m := testManager(cfg)

	m.ReportWriteExhaustion("deposit")
	m.ReportWriteExhaustion("deposit")
	m.ReportWriteSuccess()
	m.ReportWriteExhaustion("deposit")
	m.ReportWriteExhaustion("deposit")

	assert.False(t, m.ReadOnly(), "exhaustions must be consecutive to count")
}

func TestManager_LeavingReadOnlyResetsTheStreak(t *testing.T) {
	cfg := DefaultDegradationConfig()
	cfg.FailureThreshold = 2
	m := testManager(cfg)

	m.ReportWriteExhaustion("deposit")
	m.ReportWriteExhaustion("deposit")
	require.True(t, m.ReadOnly())

	m.SetReadOnly(false, "manual")
	m.ReportWriteExhaustion("deposit")
	assert.False(t, m.ReadOnly(), "the streak must restart after leaving the mode")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestManager_WatchPrimaryEntersAndExits(t *testing.T) {
	cfg := DegradationConfig{
		ReadOnlyAutoExit:  true,
		FailureThreshold:  3,
		RecoveryThreshold: 2,
		ProbeInterval:     3 * time.Millisecond,
	}
	m := testManager(cfg)

	var healthy atomic.Bool
	probe := func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.WatchPrimary(ctx, probe)

	waitFor(t, time.Second, m.ReadOnly, "expected consecutive probe failures to enter read-only mode")

	healthy.Store(true)
	waitFor(t, time.Second, func() bool { return !m.ReadOnly() },
		"expected probe recovery to exit read-only mode")
}

func TestManager_WatchPrimaryHonorsManualExit(t *testing.T) {
	cfg := DegradationConfig{
		ReadOnlyAutoExit:  false,
		FailureThreshold:  2,
		RecoveryThreshold: 1,
		ProbeInterval:     3 * time.Millisecond,
	}
	m := testManager(cfg)
	m.SetReadOnly(true, "manual")

	probe := func(ctx context.Context) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.WatchPrimary(ctx, probe)

	time.Sleep(30 * time.Millisecond)
	assert.True(t, m.ReadOnly(), "without auto-exit the probe must not clear the mode")
}

func TestManager_WatchCacheClearsBypass(t *testing.T) {
	cfg := DegradationConfig{
		ReadOnlyAutoExit:  true,
		FailureThreshold:  3,
		RecoveryThreshold: 2,
		ProbeInterval:     3 * time.Millisecond,
	}
	m := testManager(cfg)
	m.SetCacheBypass(true)

	probe := func(ctx context.Context) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.WatchCache(ctx, probe)

	waitFor(t, time.Second, func() bool { return !m.CacheBypass() },
		"expected probe recovery to clear cache-bypass mode")
}

func TestTrackWrites_TransientExhaustionCounts(t *testing.T) {
	cfg := DefaultDegradationConfig()
	cfg.FailureThreshold = 2
	m := testManager(cfg)

	exhausted := domainerrors.NewRetryExhausted("deposit", 3,
		domainerrors.NewTransient("wallet_repository.Update", errors.New("connection refused")))
	handler := TrackWrites(m, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return nil, exhausted
	})

	_, err := handler(context.Background(), testCommand{})
	require.Error(t, err)
	assert.False(t, m.ReadOnly())

	_, _ = handler(context.Background(), testCommand{})
	assert.True(t, m.ReadOnly(), "consecutive transient exhaustions must enter read-only mode")
}

func TestTrackWrites_OptimisticExhaustionDoesNotCount(t *testing.T) {
	cfg := DefaultDegradationConfig()
	cfg.FailureThreshold = 1
	m := testManager(cfg)

	exhausted := domainerrors.NewRetryExhausted("deposit", 5,
		domainerrors.NewOptimisticLock("Wallet", "w-1", "version conflict"))
	handler := TrackWrites(m, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		return nil, exhausted
	})

	_, err := handler(context.Background(), testCommand{})

	require.Error(t, err)
	assert.False(t, m.ReadOnly(), "lock contention is not a primary failure")
}

func TestTrackWrites_SuccessResets(t *testing.T) {
	cfg := DefaultDegradationConfig()
	cfg.FailureThreshold = 2
	m := testManager(cfg)

	exhausted := domainerrors.NewRetryExhausted("deposit", 3,
		domainerrors.NewTransient("wallet_repository.Update", errors.New("connection refused")))
	fail := true
	handler := TrackWrites(m, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		if fail {
			return nil, exhausted
		}
		return "ok", nil
	})

	_, _ = handler(context.Background(), testCommand{})
	fail = false
	result, err := handler(context.Background(), testCommand{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	fail = true
	_, _ = handler(context.Background(), testCommand{})
	assert.False(t, m.ReadOnly(), "a success in between must reset the streak")
}
