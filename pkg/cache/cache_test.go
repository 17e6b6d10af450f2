package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Symbol string  `json:"symbol"`
	Risk   float64 `json:"risk"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "report:SPY", report{Symbol: "SPY", Risk: 0.42}, time.Minute))

	var got report
	require.NoError(t, mc.Get(ctx, "report:SPY", &got))
	assert.Equal(t, report{Symbol: "SPY", Risk: 0.42}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Nanosecond))
	time.Sleep(time.Millisecond)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))
	require.NoError(t, mc.Set(ctx, "d", 4, 0))
	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "d", &v))
	assert.Equal(t, 4, v)
}

func TestMemoryCachePatternAndLocks(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{"series:SPY:1d", "series:SPY:1w", "series:BTC-USD:1d"} {
		require.NoError(t, mc.Set(ctx, k, k, 0))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("series:SPY:")))
	assert.Equal(t, 1, mc.Len())

	ok, err := mc.TryLock(ctx, "lock:SPY", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "lock:SPY", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock:SPY"))
	ok, _ = mc.TryLock(ctx, "lock:SPY", time.Minute)
	assert.True(t, ok)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	rc := NewRedisCacheWithClient(db, "risklens")

	t.Run("hit decodes json", func(t *testing.T) {
		mock.ExpectGet("risklens:report:SPY").SetVal(`{"symbol":"SPY","risk":0.7}`)
		var got report
		require.NoError(t, rc.Get(ctx, "report:SPY", &got))
		assert.Equal(t, 0.7, got.Risk)
	})

	t.Run("miss maps to ErrCacheMiss", func(t *testing.T) {
		mock.ExpectGet("risklens:report:ETH-USD").RedisNil()
		var got report
		assert.ErrorIs(t, rc.Get(ctx, "report:ETH-USD", &got), ErrCacheMiss)
	})

	t.Run("set stores encoded bytes", func(t *testing.T) {
		mock.ExpectSet("risklens:raw", []byte("v"), time.Minute).SetVal("OK")
		require.NoError(t, rc.Set(ctx, "raw", "v", time.Minute))
	})

	t.Run("lock", func(t *testing.T) {
		mock.ExpectSetNX("risklens:lock:SPY", "locked", time.Minute).SetVal(true)
		ok, err := rc.TryLock(ctx, "lock:SPY", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		mock.ExpectDel("risklens:lock:SPY").SetVal(1)
		require.NoError(t, rc.Unlock(ctx, "lock:SPY"))
	})

	t.Run("health", func(t *testing.T) {
		mock.ExpectPing().SetVal("PONG")
		require.NoError(t, rc.Health(ctx))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "series:SPY:1d:500", GenerateKeyWithParams("series", "SPY", "1d", 500))
	assert.Len(t, HashKey("x"), 32)
}
