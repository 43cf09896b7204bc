package enrich

import (
	"context"
	"hash/fnv"
	"strings"
)

// StubProvider returns deterministic fake enrichment data derived from
// the place name, for development and tests where no real place-data
// API is configured. Identical inputs always produce identical output.
type StubProvider struct{}

// NewStubProvider returns the deterministic stub.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// Enrich fabricates plausible attributes from a hash of the name.
func (s *StubProvider) Enrich(_ context.Context, name, _, _ string) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	seed := h.Sum32()

	return Result{
		// Ratings land in [3.5, 5.0) in 0.1 steps.
		Rating:       3.5 + float64(seed%15)/10.0,
		RatingsCount: 50 + int(seed%5000),
		PriceLevel:   1 + int(seed/7%4),
	}, nil
}

func (s *StubProvider) Name() string { return "stub" }
