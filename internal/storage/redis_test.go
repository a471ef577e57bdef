package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCache_SetGetDel(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Ping(ctx))
	require.NoError(t, cache.Set(ctx, "test:key", "test-value", 10*time.Second))

	got, err := cache.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", string(got))
	assert.Equal(t, 10*time.Second, mr.TTL("test:key"))

	n, err := cache.Del(ctx, "test:key", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = cache.Get(ctx, "test:key")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisStore_NamespacesAndScans(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	ctx := testContext(t)
	store := NewRedisStore(cache, "scor_analysis:")

	// foreign keys must survive DeleteAll
	require.NoError(t, mr.Set("other:key", "keep"))

	for i := 0; i < 450; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("0x%040d", i), []byte("{}"), time.Hour))
	}
	assert.True(t, mr.Exists("scor_analysis:0x0000000000000000000000000000000000000007"))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 450)
	assert.Contains(t, keys, fmt.Sprintf("0x%040d", 7))

	n, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 450, n)
	assert.True(t, mr.Exists("other:key"))

	_, ok, err := store.Get(ctx, fmt.Sprintf("0x%040d", 7))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now)
	ctx := testContext(t)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	clock.Advance(time.Minute)

	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	n, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := testContext(t)

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}
