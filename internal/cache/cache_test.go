package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer(t *testing.T, cfg Config, durable DurableStore) *Layer {
	t.Helper()
	l := NewLayer(cfg, durable, zerolog.Nop())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newTestBadger(t *testing.T, ttl time.Duration) *BadgerStore {
	t.Helper()
	store, err := OpenBadger(filepath.Join(t.TempDir(), "cache"), ttl)
	require.NoError(t, err)
	return store
}

func TestLayerMemoryHit(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)
	ctx := context.Background()

	l.Put(ctx, "k1", []byte("payload"))

	got, tier, ok := l.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
	assert.Equal(t, []byte("payload"), got)
}

func TestLayerMiss(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)

	_, tier, ok := l.Get(context.Background(), "absent")
	assert.False(t, ok)
	assert.Equal(t, TierMiss, tier)
}

func TestLayerGetReturnsCopy(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)
	ctx := context.Background()

	l.Put(ctx, "k1", []byte("abc"))

	first, _, ok := l.Get(ctx, "k1")
	require.True(t, ok)
	first[0] = 'x'

	second, _, ok := l.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), second)
}

func TestLayerDurablePromotion(t *testing.T) {
	store := newTestBadger(t, 0)
	l := newTestLayer(t, Config{}, store)
	ctx := context.Background()

	// Seed the durable tier directly, bypassing memory.
	require.NoError(t, store.Set(ctx, "k1", []byte("durable payload")))

	got, tier, ok := l.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, TierDurable, tier)
	assert.Equal(t, []byte("durable payload"), got)

	// Promoted entry now served from memory.
	_, tier, ok = l.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
}

func TestLayerMemoryTTLExpiry(t *testing.T) {
	l := newTestLayer(t, Config{MemoryTTL: 20 * time.Millisecond}, nil)
	ctx := context.Background()

	l.Put(ctx, "k1", []byte("short lived"))
	time.Sleep(60 * time.Millisecond)

	_, tier, ok := l.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Equal(t, TierMiss, tier)
}

func TestLayerDoComputesOnce(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)
	ctx := context.Background()

	var computes atomic.Int64
	compute := func(context.Context) ([]byte, error) {
		computes.Add(1)
		time.Sleep(30 * time.Millisecond)
		return []byte("result"), nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = l.Do(ctx, "shared", compute)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), computes.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("result"), results[i])
	}

	// Result is cached for later callers.
	got, tier, ok := l.Get(ctx, "shared")
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
	assert.Equal(t, []byte("result"), got)
}

func TestLayerDoDistinctKeysIndependent(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _, _ = l.Do(ctx, "slow", func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("slow"), nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, tier, err := l.Do(ctx, "fast", func(context.Context) ([]byte, error) {
			return []byte("fast"), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, TierCompute, tier)
		assert.Equal(t, []byte("fast"), got)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("computation for a distinct key was blocked")
	}
	close(release)
}

func TestLayerDoAbandonedCallerStillPopulates(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())

	_, _, err := l.Do(ctx, "k1", func(cctx context.Context) ([]byte, error) {
		cancel() // caller walks away mid-computation
		select {
		case <-cctx.Done():
			t.Error("detached computation was cancelled with its caller")
			return nil, cctx.Err()
		case <-time.After(30 * time.Millisecond):
		}
		return []byte("late result"), nil
	})
	require.ErrorIs(t, err, context.Canceled)

	// The detached computation must still land in the cache.
	require.Eventually(t, func() bool {
		_, _, ok := l.Get(context.Background(), "k1")
		return ok
	}, time.Second, 10*time.Millisecond)

	got, _, ok := l.Get(context.Background(), "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("late result"), got)
}

func TestLayerDoErrorNotCached(t *testing.T) {
	l := newTestLayer(t, Config{}, nil)
	ctx := context.Background()

	boom := errors.New("compute failed")
	_, tier, err := l.Do(ctx, "k1", func(context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, TierMiss, tier)

	// A later call recomputes and succeeds.
	got, tier, err := l.Do(ctx, "k1", func(context.Context) ([]byte, error) {
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, TierCompute, tier)
	assert.Equal(t, []byte("recovered"), got)
}

func TestLayerDurableUp(t *testing.T) {
	t.Run("memory only", func(t *testing.T) {
		l := newTestLayer(t, Config{}, nil)
		assert.False(t, l.DurableUp())
	})

	t.Run("healthy store", func(t *testing.T) {
		store := newTestBadger(t, 0)
		l := newTestLayer(t, Config{}, store)
		ctx := context.Background()

		l.Put(ctx, "k1", []byte("v"))
		assert.True(t, l.DurableUp())
	})

	t.Run("failing store degrades", func(t *testing.T) {
		l := newTestLayer(t, Config{}, failingStore{})
		ctx := context.Background()

		// Write failure flips the flag but the memory tier still serves.
		l.Put(ctx, "k1", []byte("v"))
		assert.False(t, l.DurableUp())

		got, tier, ok := l.Get(ctx, "k1")
		require.True(t, ok)
		assert.Equal(t, TierMemory, tier)
		assert.Equal(t, []byte("v"), got)
	})
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store := newTestBadger(t, 0)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	_, err := store.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	before := time.Now()
	require.NoError(t, store.Set(ctx, "k1", []byte("payload")))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	created, err := store.CreatedAt(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, created.Before(before.Add(-time.Second)))
	assert.False(t, created.After(time.Now().Add(time.Second)))

	// Overwrites replace the payload.
	require.NoError(t, store.Set(ctx, "k1", []byte("replaced")))
	got, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store down")
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("store down")
}

func (failingStore) Close() error { return nil }
