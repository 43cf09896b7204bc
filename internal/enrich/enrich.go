// Package enrich augments raw catalog entries with attributes from an
// external place-data provider. Providers are resolved once at
// construction; the ingest pipeline only sees the interface.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/routeloom/routeloom/pkg/types"
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown enrichment provider")

// Result holds the attributes a provider can contribute. Zero-valued
// fields mean the provider had nothing for them; callers merge
// non-zero fields over the raw record.
type Result struct {
	Rating       float64
	RatingsCount int
	PriceLevel   int
	Coord        types.Coordinate
	Site         string
	Phone        string
}

// Provider looks up structured attributes for a raw place name and
// address within a city.
type Provider interface {
	Enrich(ctx context.Context, name, address, city string) (Result, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "stub" (default) or "none"
}

// New resolves the configured provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "stub":
		return NewStubProvider(), nil
	case "none":
		return noopProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Apply merges non-zero enrichment fields into a place record.
func Apply(p *types.Place, r Result) {
	if r.Rating > 0 {
		p.Rating = r.Rating
	}
	if r.PriceLevel > 0 {
		p.PriceLevel = r.PriceLevel
	}
	if r.Coord.Valid() && (p.Coord.Lat == 0 && p.Coord.Lng == 0) {
		p.Coord = r.Coord
	}
}

type noopProvider struct{}

func (noopProvider) Enrich(context.Context, string, string, string) (Result, error) {
	return Result{}, nil
}

func (noopProvider) Name() string { return "none" }
