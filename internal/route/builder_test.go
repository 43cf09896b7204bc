package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeloom/routeloom/pkg/types"
)

func candidate(id int64, name string, lat, lng float64, tags []string, category, district string, rating, composite float64) types.CandidateScore {
	return types.CandidateScore{
		Place: types.Place{
			ID:       id,
			Name:     name,
			Tags:     tags,
			Category: category,
			District: district,
			Coord:    types.Coordinate{Lat: lat, Lng: lng},
			Rating:   rating,
		},
		Composite: composite,
	}
}

// cityWalk is a compact downtown scenario: three stops roughly 400m
// apart, walkable from the origin.
func cityWalk() ([]types.CandidateScore, types.Coordinate) {
	candidates := []types.CandidateScore{
		candidate(1, "Tom Yum Kitchen", 13.750, 100.500, []string{"food", "tom-yum"}, "restaurant", "silom", 4.6, 0.9),
		candidate(2, "Lumpini Park", 13.752, 100.503, []string{"walk", "park"}, "park", "pathumwan", 4.5, 0.8),
		candidate(3, "Skyline Rooftop", 13.754, 100.506, []string{"rooftop", "bar"}, "bar", "sathorn", 4.4, 0.7),
	}
	origin := types.Coordinate{Lat: 13.749, Lng: 100.499}
	return candidates, origin
}

func TestBuildThreeStopRoute(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	candidates, origin := cityWalk()

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)

	route := result.Routes[0]
	assert.Equal(t, []int64{1, 2, 3}, route.Steps)
	assert.False(t, route.Partial)
	assert.InDelta(t, 950, route.TotalDistanceM, 60)
	assert.Greater(t, route.FitScore, 0.0)
	assert.LessOrEqual(t, route.FitScore, 1.0)
	require.NoError(t, route.Validate())
}

func TestBuildRespectsDistanceWindow(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	candidates, origin := cityWalk()

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	require.False(t, route.Partial)

	byID := make(map[int64]types.Place)
	for _, c := range candidates {
		byID[c.Place.ID] = c.Place
	}
	for i := 1; i < len(route.Steps); i++ {
		d := byID[route.Steps[i-1]].Coord.DistanceM(byID[route.Steps[i]].Coord)
		assert.GreaterOrEqual(t, d, 300.0, "leg %d too short", i)
		assert.LessOrEqual(t, d, 1200.0, "leg %d too long", i)
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	candidates, origin := cityWalk()

	first := b.Build(candidates, origin)
	second := b.Build(candidates, origin)
	assert.Equal(t, first, second)
}

func TestBuildPartialWhenCatalogRunsOut(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	candidates := []types.CandidateScore{
		candidate(1, "Noodle House", 13.750, 100.500, []string{"food"}, "restaurant", "silom", 4.2, 0.85),
		candidate(2, "River Walk", 13.752, 100.503, []string{"walk"}, "park", "sathorn", 4.0, 0.75),
	}
	origin := types.Coordinate{Lat: 13.749, Lng: 100.499}

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	assert.Equal(t, []int64{1, 2}, route.Steps)
	assert.True(t, route.Partial)
}

func TestBuildRelaxedPickFlagsPartial(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	// 2 is only ~240m from 1, below the 300m floor, so the pick needs
	// one relaxation round.
	candidates := []types.CandidateScore{
		candidate(1, "Corner Cafe", 13.7500, 100.5000, []string{"coffee"}, "cafe", "silom", 4.1, 0.8),
		candidate(2, "Art Alley", 13.7510, 100.5018, []string{"art"}, "gallery", "silom", 4.3, 0.7),
	}
	origin := types.Coordinate{Lat: 13.7499, Lng: 100.4999}

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	assert.Equal(t, []int64{1, 2}, route.Steps)
	assert.True(t, route.Partial)
}

func TestBuildEmptyCandidates(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	result := b.Build(nil, types.Coordinate{Lat: 13.75, Lng: 100.5})
	assert.Empty(t, result.Routes)
	assert.Empty(t, result.Alternatives.Step2)
}

func TestBuildNoSeedAboveRelevanceFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRelevance = 0.5
	b := NewBuilder(cfg)

	candidates := []types.CandidateScore{
		candidate(1, "Weak Match", 13.750, 100.500, []string{"misc"}, "shop", "silom", 3.0, 0.1),
	}
	result := b.Build(candidates, types.Coordinate{Lat: 13.749, Lng: 100.499})
	assert.Empty(t, result.Routes)
}

func TestBuildSingleStepWhenNothingInWindow(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	// The second place is ~11km away, beyond the window at every
	// relaxation round.
	candidates := []types.CandidateScore{
		candidate(1, "Old Town Eatery", 13.750, 100.500, []string{"food"}, "restaurant", "silom", 4.0, 0.8),
		candidate(2, "Suburb Mall", 13.850, 100.500, []string{"shopping"}, "mall", "chatuchak", 4.0, 0.8),
	}
	origin := types.Coordinate{Lat: 13.749, Lng: 100.499}

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	assert.Equal(t, []int64{1}, route.Steps)
	assert.True(t, route.Partial)
}

func TestBuildAlternativesForStepTwo(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	candidates, origin := cityWalk()
	// A fourth place near step 1 sharing step 2's walk tag; low
	// composite keeps it out of the chosen route.
	candidates = append(candidates,
		candidate(4, "Canal Promenade", 13.753, 100.501, []string{"walk"}, "park", "bangrak", 3.8, 0.2))

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)
	assert.Equal(t, []int64{1, 2, 3}, result.Routes[0].Steps)

	require.Len(t, result.Alternatives.Step2, 1)
	alt := result.Alternatives.Step2[0]
	assert.Equal(t, int64(4), alt.ID)
	assert.Equal(t, "Canal Promenade", alt.Name)
	assert.InDelta(t, 1.0, alt.Similarity, 1e-9)
}

func TestBuildAlternativesExcludeLowOverlap(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	candidates, origin := cityWalk()
	// Near step 1 but with no tags in common with step 2.
	candidates = append(candidates,
		candidate(4, "Vinyl Record Shop", 13.753, 100.501, []string{"music", "shopping"}, "shop", "bangrak", 4.0, 0.2))

	result := b.Build(candidates, origin)
	require.Len(t, result.Routes, 1)
	assert.Empty(t, result.Alternatives.Step2)
}

func TestFitScoreWithinBounds(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	prev := types.Coordinate{Lat: 13.75, Lng: 100.5}

	extremes := []types.CandidateScore{
		candidate(1, "Best Case", 13.75, 100.5, nil, "bar", "silom", 5.0, 1.0),
		candidate(2, "Worst Case", 13.90, 100.7, nil, "", "", 0.0, 0.0),
	}
	for _, c := range extremes {
		fit := b.fitScore(c, prev, nil)
		assert.GreaterOrEqual(t, fit, 0.0)
		assert.LessOrEqual(t, fit, 1.0)
	}
}

func TestTagSimilarity(t *testing.T) {
	chosen := tagSet([]string{"Walk", "park"})

	assert.InDelta(t, 1.0, tagSimilarity([]string{"walk"}, chosen), 1e-9)
	assert.InDelta(t, 0.5, tagSimilarity([]string{"walk", "food"}, chosen), 1e-9)
	assert.Zero(t, tagSimilarity([]string{"food"}, chosen))
	assert.Zero(t, tagSimilarity(nil, chosen))
}
