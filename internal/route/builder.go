package route

import (
	"sort"
	"strings"

	"github.com/routeloom/routeloom/pkg/types"
)

// Config tunes route construction. The defaults reflect walking routes
// through a dense city: each leg between 300 and 1200 meters.
type Config struct {
	Steps           int     // target number of stops (default 3)
	MinStepDistance float64 // lower window bound in meters (default 300)
	MaxStepDistance float64 // upper window bound in meters (default 1200)
	MinRelevance    float64 // composite score floor for the seed step

	MatchWeight     float64 // composite search score (default 0.50)
	GeoWeight       float64 // proximity to the previous step (default 0.25)
	RatingWeight    float64 // place rating (default 0.15)
	DiversityWeight float64 // category/district novelty (default 0.10)

	// DiversityPenalty is the diversity component for a candidate that
	// repeats a previously chosen category or district.
	DiversityPenalty float64

	// RelaxFactor widens the distance window when it yields no
	// candidate; RelaxRounds bounds how many times. Any relaxed pick
	// marks the route partial.
	RelaxFactor float64
	RelaxRounds int

	// AlternativeThreshold is the minimum tag-overlap similarity for a
	// step alternative; MaxAlternatives caps how many are returned.
	AlternativeThreshold float64
	MaxAlternatives      int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Steps:                3,
		MinStepDistance:      300,
		MaxStepDistance:      1200,
		MinRelevance:         0.05,
		MatchWeight:          0.50,
		GeoWeight:            0.25,
		RatingWeight:         0.15,
		DiversityWeight:      0.10,
		DiversityPenalty:     0.4,
		RelaxFactor:          1.5,
		RelaxRounds:          2,
		AlternativeThreshold: 0.3,
		MaxAlternatives:      5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Steps <= 0 {
		c.Steps = d.Steps
	}
	if c.MinStepDistance <= 0 {
		c.MinStepDistance = d.MinStepDistance
	}
	if c.MaxStepDistance <= 0 {
		c.MaxStepDistance = d.MaxStepDistance
	}
	if c.MatchWeight == 0 && c.GeoWeight == 0 && c.RatingWeight == 0 && c.DiversityWeight == 0 {
		c.MatchWeight = d.MatchWeight
		c.GeoWeight = d.GeoWeight
		c.RatingWeight = d.RatingWeight
		c.DiversityWeight = d.DiversityWeight
	}
	if c.DiversityPenalty <= 0 {
		c.DiversityPenalty = d.DiversityPenalty
	}
	if c.RelaxFactor <= 1 {
		c.RelaxFactor = d.RelaxFactor
	}
	if c.RelaxRounds < 0 {
		c.RelaxRounds = d.RelaxRounds
	}
	if c.AlternativeThreshold <= 0 {
		c.AlternativeThreshold = d.AlternativeThreshold
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = d.MaxAlternatives
	}
	return c
}

// Builder constructs routes from ranked candidates. It is stateless and
// safe for concurrent use.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder with the given tuning.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg.withDefaults()}
}

// step is a chosen stop plus its bookkeeping.
type step struct {
	cand    types.CandidateScore
	fit     float64
	distM   float64 // distance from the previous point
	relaxed bool
}

// Build greedily assembles a route from candidates. The candidate order
// is the search ranking and breaks all score ties, so identical inputs
// always produce identical output. An empty result (no eligible seed)
// returns a RouteResult with no routes, not an error.
func (b *Builder) Build(candidates []types.CandidateScore, origin types.Coordinate) types.RouteResult {
	var result types.RouteResult
	if len(candidates) == 0 {
		return result
	}

	seedIdx := b.seed(candidates, origin)
	if seedIdx < 0 {
		return result
	}

	chosen := []step{{
		cand:  candidates[seedIdx],
		fit:   b.fitScore(candidates[seedIdx], origin, nil),
		distM: origin.DistanceM(candidates[seedIdx].Place.Coord),
	}}
	used := map[int64]bool{candidates[seedIdx].Place.ID: true}

	partial := false
	for len(chosen) < b.cfg.Steps {
		prev := chosen[len(chosen)-1]
		next, relaxed, ok := b.extend(candidates, used, prev.cand.Place.Coord, chosen)
		if !ok {
			partial = true
			break
		}
		if relaxed {
			partial = true
		}
		next.relaxed = relaxed
		chosen = append(chosen, next)
		used[next.cand.Place.ID] = true
	}

	route := types.Route{
		Steps:   make([]int64, len(chosen)),
		Partial: partial,
	}
	var fitSum float64
	for i, s := range chosen {
		route.Steps[i] = s.cand.Place.ID
		route.TotalDistanceM += s.distM
		fitSum += s.fit
	}
	route.FitScore = clamp01(fitSum / float64(len(chosen)))

	result.Routes = []types.Route{route}
	if len(chosen) >= 2 {
		result.Alternatives.Step2 = b.alternatives(candidates, used, chosen[0].cand.Place.Coord, chosen[1].cand.Place)
	}
	return result
}

// seed picks the candidate nearest the origin among those clearing the
// relevance floor. Returns -1 when none qualify.
func (b *Builder) seed(candidates []types.CandidateScore, origin types.Coordinate) int {
	best := -1
	bestDist := 0.0
	for i, c := range candidates {
		if c.Composite < b.cfg.MinRelevance {
			continue
		}
		d := origin.DistanceM(c.Place.Coord)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// extend picks the unvisited candidate inside the distance window from
// prev that maximizes the fit score, widening the window up to
// RelaxRounds times when it is empty. Ties keep the earlier (higher
// ranked) candidate because the comparison is strict.
func (b *Builder) extend(candidates []types.CandidateScore, used map[int64]bool, prev types.Coordinate, chosen []step) (step, bool, bool) {
	minD, maxD := b.cfg.MinStepDistance, b.cfg.MaxStepDistance
	for round := 0; round <= b.cfg.RelaxRounds; round++ {
		best := -1
		bestFit := 0.0
		bestDist := 0.0
		for i, c := range candidates {
			if used[c.Place.ID] {
				continue
			}
			d := prev.DistanceM(c.Place.Coord)
			if d < minD || d > maxD {
				continue
			}
			fit := b.fitScore(c, prev, chosen)
			if best < 0 || fit > bestFit {
				best, bestFit, bestDist = i, fit, d
			}
		}
		if best >= 0 {
			return step{cand: candidates[best], fit: bestFit, distM: bestDist}, round > 0, true
		}
		minD /= b.cfg.RelaxFactor
		maxD *= b.cfg.RelaxFactor
	}
	return step{}, false, false
}

// fitScore is the weighted per-candidate score at a step. Every
// component is in [0,1], so the weighted sum is too.
func (b *Builder) fitScore(c types.CandidateScore, prev types.Coordinate, chosen []step) float64 {
	match := clamp01(c.Composite)
	geo := 1.0 / (1.0 + prev.DistanceM(c.Place.Coord)/1000.0)
	rating := clamp01(c.Place.Rating / 5.0)

	diversity := 1.0
	for _, s := range chosen {
		if sameFold(c.Place.Category, s.cand.Place.Category) || sameFold(c.Place.District, s.cand.Place.District) {
			diversity = b.cfg.DiversityPenalty
			break
		}
	}

	score := b.cfg.MatchWeight*match +
		b.cfg.GeoWeight*geo +
		b.cfg.RatingWeight*rating +
		b.cfg.DiversityWeight*diversity
	return clamp01(score)
}

// alternatives ranks unchosen candidates that could replace the second
// step: same distance window from step 1, tag overlap with the chosen
// place above the threshold, ordered by similarity then id.
func (b *Builder) alternatives(candidates []types.CandidateScore, used map[int64]bool, stepOne types.Coordinate, chosen types.Place) []types.Alternative {
	chosenTags := tagSet(chosen.Tags)

	var alts []types.Alternative
	for _, c := range candidates {
		if used[c.Place.ID] {
			continue
		}
		d := stepOne.DistanceM(c.Place.Coord)
		if d < b.cfg.MinStepDistance || d > b.cfg.MaxStepDistance {
			continue
		}
		sim := tagSimilarity(c.Place.Tags, chosenTags)
		if sim <= b.cfg.AlternativeThreshold {
			continue
		}
		alts = append(alts, types.Alternative{
			ID:         c.Place.ID,
			Name:       c.Place.Name,
			Similarity: sim,
		})
	}

	sort.SliceStable(alts, func(i, j int) bool {
		if alts[i].Similarity != alts[j].Similarity {
			return alts[i].Similarity > alts[j].Similarity
		}
		return alts[i].ID < alts[j].ID
	})
	if len(alts) > b.cfg.MaxAlternatives {
		alts = alts[:b.cfg.MaxAlternatives]
	}
	return alts
}

// tagSimilarity is the fraction of a candidate's tags shared with the
// chosen place's tag set.
func tagSimilarity(tags []string, chosen map[string]bool) float64 {
	if len(tags) == 0 {
		return 0
	}
	overlap := 0
	for _, t := range tags {
		if chosen[strings.ToLower(strings.TrimSpace(t))] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(tags))
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

func sameFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
