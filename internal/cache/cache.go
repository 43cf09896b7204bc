package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by durable stores for absent keys.
var ErrNotFound = errors.New("cache entry not found")

// Tier identifies where a payload came from.
type Tier string

const (
	TierMemory  Tier = "memory"
	TierDurable Tier = "durable"
	TierCompute Tier = "compute"
	TierMiss    Tier = "miss"
)

// DurableStore is the persistent tier. Implementations must treat Set as
// an upsert; entries are replaced wholesale, never mutated in place.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Config sizes the ephemeral tier and bounds external work.
type Config struct {
	MemorySize     int           // max ephemeral entries (default 1024)
	MemoryTTL      time.Duration // ephemeral entry lifetime (default 1h)
	DurableTimeout time.Duration // per durable round trip (default 500ms)
	ComputeTimeout time.Duration // global budget for one computation (default 10s)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MemorySize:     1024,
		MemoryTTL:      time.Hour,
		DurableTimeout: 500 * time.Millisecond,
		ComputeTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MemorySize <= 0 {
		c.MemorySize = d.MemorySize
	}
	if c.MemoryTTL <= 0 {
		c.MemoryTTL = d.MemoryTTL
	}
	if c.DurableTimeout <= 0 {
		c.DurableTimeout = d.DurableTimeout
	}
	if c.ComputeTimeout <= 0 {
		c.ComputeTimeout = d.ComputeTimeout
	}
	return c
}

// Layer is the two-tier cache. A nil durable store means memory-only
// operation from the start.
type Layer struct {
	mem     *expirable.LRU[string, []byte]
	durable DurableStore
	group   singleflight.Group
	cfg     Config
	log     zerolog.Logger

	// durableUp tracks the outcome of the most recent durable-tier
	// round trip, surfaced for debug headers.
	durableUp atomic.Bool
}

// NewLayer builds the cache layer. durable may be nil.
func NewLayer(cfg Config, durable DurableStore, log zerolog.Logger) *Layer {
	cfg = cfg.withDefaults()
	l := &Layer{
		mem:     expirable.NewLRU[string, []byte](cfg.MemorySize, nil, cfg.MemoryTTL),
		durable: durable,
		cfg:     cfg,
		log:     log,
	}
	l.durableUp.Store(durable != nil)
	return l
}

// Get looks a fingerprint up in memory first, then in the durable tier.
// Durable hits are promoted into memory before returning. The returned
// slice is the caller's copy.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, Tier, bool) {
	if payload, ok := l.mem.Get(key); ok {
		return clone(payload), TierMemory, true
	}

	if l.durable == nil {
		return nil, TierMiss, false
	}

	dctx, cancel := context.WithTimeout(ctx, l.cfg.DurableTimeout)
	defer cancel()

	payload, err := l.durable.Get(dctx, key)
	switch {
	case err == nil:
		l.durableUp.Store(true)
		l.mem.Add(key, payload)
		return clone(payload), TierDurable, true
	case errors.Is(err, ErrNotFound):
		l.durableUp.Store(true)
		return nil, TierMiss, false
	default:
		// Unreachable durable tier: degrade to memory-only, keep serving.
		l.durableUp.Store(false)
		l.log.Warn().Err(err).Str("key", key).Msg("durable cache read failed, serving memory-only")
		return nil, TierMiss, false
	}
}

// Put writes the payload to both tiers. The memory write always
// completes; the durable write is best-effort and logged on failure.
func (l *Layer) Put(ctx context.Context, key string, payload []byte) {
	l.mem.Add(key, clone(payload))

	if l.durable == nil {
		return
	}

	dctx, cancel := context.WithTimeout(ctx, l.cfg.DurableTimeout)
	defer cancel()

	if err := l.durable.Set(dctx, key, payload); err != nil {
		l.durableUp.Store(false)
		l.log.Warn().Err(err).Str("key", key).Msg("durable cache write failed")
		return
	}
	l.durableUp.Store(true)
}

// Do returns the cached payload for key or computes it exactly once.
// Concurrent calls for the same key share a single computation; calls
// for distinct keys never block one another. If the caller's context
// ends while waiting, Do returns the context error but the computation
// keeps running under a detached context bounded by ComputeTimeout, and
// its result still lands in both tiers.
func (l *Layer) Do(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, Tier, error) {
	if payload, tier, ok := l.Get(ctx, key); ok {
		return payload, tier, nil
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ComputeTimeout)
		defer cancel()

		payload, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		l.Put(cctx, key, payload)
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, TierMiss, res.Err
		}
		payload, ok := res.Val.([]byte)
		if !ok {
			return nil, TierMiss, fmt.Errorf("unexpected payload type %T", res.Val)
		}
		return clone(payload), TierCompute, nil
	case <-ctx.Done():
		return nil, TierMiss, ctx.Err()
	}
}

// DurableUp reports whether the last durable-tier round trip succeeded.
// Always false when the layer was built without a durable store.
func (l *Layer) DurableUp() bool {
	if l.durable == nil {
		return false
	}
	return l.durableUp.Load()
}

// Len returns the number of entries in the ephemeral tier.
func (l *Layer) Len() int {
	return l.mem.Len()
}

// Close releases the durable store.
func (l *Layer) Close() error {
	if l.durable == nil {
		return nil
	}
	return l.durable.Close()
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
