package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeloom/routeloom/pkg/types"
)

func TestNewResolvesProvider(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	p, err = New(Config{Provider: "none"})
	require.NoError(t, err)
	assert.Equal(t, "none", p.Name())

	_, err = New(Config{Provider: "fancy-maps"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestStubProviderDeterministic(t *testing.T) {
	p := NewStubProvider()
	ctx := context.Background()

	first, err := p.Enrich(ctx, "Tom Yum Kitchen", "12 Silom Rd", "bangkok")
	require.NoError(t, err)
	second, err := p.Enrich(ctx, "Tom Yum Kitchen", "12 Silom Rd", "bangkok")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.GreaterOrEqual(t, first.Rating, 3.5)
	assert.Less(t, first.Rating, 5.0)
	assert.GreaterOrEqual(t, first.PriceLevel, 1)
	assert.LessOrEqual(t, first.PriceLevel, 4)
}

func TestStubProviderEmptyName(t *testing.T) {
	p := NewStubProvider()

	r, err := p.Enrich(context.Background(), "  ", "", "")
	require.NoError(t, err)
	assert.Zero(t, r)
}

func TestApplyMergesNonZeroFields(t *testing.T) {
	place := types.Place{
		Name:   "Lumpini Park",
		Rating: 4.0,
		Coord:  types.Coordinate{Lat: 13.73, Lng: 100.54},
	}

	Apply(&place, Result{Rating: 4.4, PriceLevel: 1, Coord: types.Coordinate{Lat: 1, Lng: 1}})
	assert.Equal(t, 4.4, place.Rating)
	assert.Equal(t, 1, place.PriceLevel)
	// Existing coordinates are never overwritten.
	assert.Equal(t, types.Coordinate{Lat: 13.73, Lng: 100.54}, place.Coord)

	unrated := types.Place{Name: "New Spot"}
	Apply(&unrated, Result{Coord: types.Coordinate{Lat: 13.75, Lng: 100.50}})
	assert.Equal(t, types.Coordinate{Lat: 13.75, Lng: 100.50}, unrated.Coord)
}
