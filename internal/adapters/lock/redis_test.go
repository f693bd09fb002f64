package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/pricepool/internal/adapters/lock"
	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := lock.NewRedis(context.Background(), lock.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestRedis_AcquireRelease(t *testing.T) {
	l, mr := newRedisLocker(t)

	unlock, err := l.Acquire(context.Background(), "market:a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("pricepool:lock:market:a"))

	// ocupado: el segundo intento espera hasta que vence el contexto
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "market:a", 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	assert.False(t, mr.Exists("pricepool:lock:market:a"))

	unlock2, err := l.Acquire(context.Background(), "market:a", 10*time.Second)
	require.NoError(t, err)
	unlock2()
}

func TestRedis_IndependentKeys(t *testing.T) {
	l, _ := newRedisLocker(t)

	ua, err := l.Acquire(context.Background(), "market:a", time.Second)
	require.NoError(t, err)
	defer ua()

	ub, err := l.Acquire(context.Background(), "market:b", time.Second)
	require.NoError(t, err)
	ub()
}

func TestRedis_ExpiredHolderCannotReleaseNewLock(t *testing.T) {
	l, mr := newRedisLocker(t)

	stale, err := l.Acquire(context.Background(), "market:a", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := l.Acquire(context.Background(), "market:a", 10*time.Second)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("pricepool:lock:market:a"), "stale unlock must not delete the new holder's key")

	fresh()
	assert.False(t, mr.Exists("pricepool:lock:market:a"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := lock.NewRedis(context.Background(), lock.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestRedis_ConcurrentUnlockIsSafe(t *testing.T) {
	l, mr := newRedisLocker(t)

	unlock, err := l.Acquire(context.Background(), "market:a", 10*time.Second)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, mr.Exists("pricepool:lock:market:a"))
}
