package kis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockhunter/pkg/config"
	"github.com/wonny/stockhunter/pkg/logger"
)

func testKISConfig() config.KISConfig {
	return config.KISConfig{
		AppKey:       "test-app-key",
		AppSecret:    "test-app-secret",
		IsProduction: false,
	}
}

func countingMint(counter *atomic.Int32, ttl time.Duration) MintFunc {
	return func(ctx context.Context) (*TokenGrant, error) {
		counter.Add(1)
		now := time.Now()
		return &TokenGrant{
			Token:     fmt.Sprintf("token-%d", counter.Load()),
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		}, nil
	}
}

func TestTokenManager_ConcurrentAcquireMintsOnce(t *testing.T) {
	dir := t.TempDir()
	mgr := NewTokenManager(testKISConfig(), dir, logger.NewNop())

	var mints atomic.Int32
	mint := countingMint(&mints, 24*time.Hour)

	var wg sync.WaitGroup
	tokens := make([]string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			token, err := mgr.Acquire(context.Background(), mint)
			require.NoError(t, err)
			tokens[idx] = token
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), mints.Load(), "concurrent acquire must mint at most once")
	for _, token := range tokens {
		assert.Equal(t, tokens[0], token)
	}
}

func TestTokenManager_ReuseAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := testKISConfig()

	var mints atomic.Int32
	mint := countingMint(&mints, 24*time.Hour)

	// First "process": mints and persists
	mgr1 := NewTokenManager(cfg, dir, logger.NewNop())
	token1, err := mgr1.Acquire(context.Background(), mint)
	require.NoError(t, err)
	require.Equal(t, int32(1), mints.Load())

	// Second "process": must load from file, zero additional mints
	mgr2 := NewTokenManager(cfg, dir, logger.NewNop())
	token2, err := mgr2.Acquire(context.Background(), mint)
	require.NoError(t, err)

	assert.Equal(t, token1, token2)
	assert.Equal(t, int32(1), mints.Load(), "restart within validity must not mint")
}

func TestTokenManager_ExpiredFileIsReplaced(t *testing.T) {
	dir := t.TempDir()
	cfg := testKISConfig()

	var mints atomic.Int32

	// Persist a token that is already inside the safety margin
	mgr1 := NewTokenManager(cfg, dir, logger.NewNop())
	_, err := mgr1.Acquire(context.Background(), countingMint(&mints, 2*time.Minute))
	require.NoError(t, err)

	mgr2 := NewTokenManager(cfg, dir, logger.NewNop())
	token, err := mgr2.Acquire(context.Background(), countingMint(&mints, 24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int32(2), mints.Load(), "near-expiry token must be re-minted")
	assert.Equal(t, "token-2", token)
}

func TestTokenManager_CacheFilePerEnvAndKey(t *testing.T) {
	dir := t.TempDir()

	prodCfg := testKISConfig()
	prodCfg.IsProduction = true
	paperCfg := testKISConfig()

	var mints atomic.Int32
	mint := countingMint(&mints, 24*time.Hour)

	_, err := NewTokenManager(prodCfg, dir, logger.NewNop()).Acquire(context.Background(), mint)
	require.NoError(t, err)
	_, err = NewTokenManager(paperCfg, dir, logger.NewNop()).Acquire(context.Background(), mint)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "prod and paper must use distinct cache files")
	for _, entry := range entries {
		assert.Contains(t, entry.Name(), "token_")
		assert.Equal(t, ".json", filepath.Ext(entry.Name()))
	}
}

func TestTokenManager_Purge(t *testing.T) {
	dir := t.TempDir()
	cfg := testKISConfig()

	var mints atomic.Int32
	mint := countingMint(&mints, 24*time.Hour)

	mgr := NewTokenManager(cfg, dir, logger.NewNop())
	_, err := mgr.Acquire(context.Background(), mint)
	require.NoError(t, err)

	require.NoError(t, mgr.Purge())

	_, err = mgr.Acquire(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, int32(2), mints.Load(), "purge must force a fresh mint")
}

func TestTokenManager_MintFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	mgr := NewTokenManager(testKISConfig(), dir, logger.NewNop())

	failing := func(ctx context.Context) (*TokenGrant, error) {
		return nil, &AuthError{Reason: "invalid app key"}
	}

	_, err := mgr.Acquire(context.Background(), failing)
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
