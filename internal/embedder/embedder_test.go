package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedDeterministic(t *testing.T) {
	l := NewLocalProvider(nil)
	ctx := context.Background()

	a, err := l.Embed(ctx, "lazy tom-yum walk rooftop")
	require.NoError(t, err)
	b, err := l.Embed(ctx, "lazy tom-yum walk rooftop")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Len(t, a.Vector, LocalDimension)
}

func TestLocalEmbedNormalized(t *testing.T) {
	l := NewLocalProvider(nil)

	emb, err := l.Embed(context.Background(), "rooftop bar with a view")
	require.NoError(t, err)

	var sum float64
	for _, v := range emb.Vector {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestLocalEmbedCaseInsensitive(t *testing.T) {
	l := NewLocalProvider(nil)
	ctx := context.Background()

	a, err := l.Embed(ctx, "Rooftop Bar")
	require.NoError(t, err)
	b, err := l.Embed(ctx, "rooftop bar")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
}

func TestLocalEmbedShortText(t *testing.T) {
	l := NewLocalProvider(nil)

	// Shorter than one trigram: zero vector, not an error
	emb, err := l.Embed(context.Background(), "ab")
	require.NoError(t, err)
	for _, v := range emb.Vector {
		assert.Zero(t, v)
	}
}

func TestLocalEmbedEmptyText(t *testing.T) {
	l := NewLocalProvider(nil)

	_, err := l.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(10)
	l := NewLocalProvider(cache)
	ctx := context.Background()

	first, err := l.Embed(ctx, "tom yum house")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// Mutating a returned vector must not poison the cache
	first.Vector[0] = 99

	second, err := l.Embed(ctx, "tom yum house")
	require.NoError(t, err)
	assert.NotEqual(t, float32(99), second.Vector[0])
}

func TestCacheSetDetachesFromCaller(t *testing.T) {
	cache := NewCache(10)

	emb := &Embedding{
		Vector:    []float32{1, 2, 3},
		Dimension: 3,
		Provider:  ProviderLocal,
		Model:     localModel,
		Hash:      "h1",
	}
	cache.Set("h1", emb)

	// Mutating the slice handed to Set must not reach the cached value.
	emb.Vector[0] = 99

	got, ok := cache.Get("h1")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got.Vector)
}

func TestNewSelectsProvider(t *testing.T) {
	e, err := New(Config{Provider: "local", CacheSize: 10})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	e, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	_, err = New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	e, err = New(Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, e.Provider())

	_, err = New(Config{Provider: "qdrant"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
