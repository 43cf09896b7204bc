package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateDistanceM(t *testing.T) {
	// Two points in central Bangkok roughly 500m apart
	a := Coordinate{Lat: 13.750, Lng: 100.500}
	b := Coordinate{Lat: 13.752, Lng: 100.503}

	d := a.DistanceM(b)
	assert.InDelta(t, 395, d, 50)

	// Symmetry and identity
	assert.InDelta(t, d, b.DistanceM(a), 0.001)
	assert.Zero(t, a.DistanceM(a))
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Lat: 13.75, Lng: 100.5}.Valid())
	assert.False(t, Coordinate{Lat: math.NaN(), Lng: 100.5}.Valid())
	assert.False(t, Coordinate{Lat: 13.75, Lng: math.Inf(1)}.Valid())
	assert.False(t, Coordinate{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Coordinate{Lat: 0, Lng: -181}.Valid())
}

func TestRouteValidate(t *testing.T) {
	ok := Route{Steps: []int64{1, 2, 3}, TotalDistanceM: 950, FitScore: 0.7}
	assert.NoError(t, ok.Validate())

	dup := Route{Steps: []int64{1, 2, 1}, FitScore: 0.5}
	assert.ErrorIs(t, dup.Validate(), ErrDuplicateStep)

	score := Route{Steps: []int64{1}, FitScore: 1.2}
	assert.ErrorIs(t, score.Validate(), ErrScoreOutOfRange)

	dist := Route{Steps: []int64{1}, FitScore: 0.5, TotalDistanceM: -1}
	assert.ErrorIs(t, dist.Validate(), ErrNegativeDistance)
}
