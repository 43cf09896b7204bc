// Package ingest loads a place seed file into the catalog: each record
// is enriched, upserted, and embedded. Records are processed by a
// bounded worker pool; individual record failures are collected rather
// than aborting the run.
package ingest

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/routeloom/routeloom/internal/embedder"
	"github.com/routeloom/routeloom/internal/enrich"
	"github.com/routeloom/routeloom/pkg/types"
)

// Catalog is the write surface the pipeline needs from storage.
type Catalog interface {
	UpsertPlace(ctx context.Context, place *types.Place) error
	UpsertEmbedding(ctx context.Context, emb *types.Embedding) error
}

// Embedder produces a vector for a place's searchable text.
type Embedder interface {
	Embed(ctx context.Context, text string) (*embedder.Embedding, error)
}

// Config tunes the pipeline.
type Config struct {
	Workers int    // concurrent records (default: NumCPU)
	City    string // passed to the enrichment provider
}

// Statistics summarizes an ingest run.
type Statistics struct {
	Loaded        int
	Failed        int
	Duration      time.Duration
	ErrorMessages []string
}

// SeedPlace is the on-disk seed record shape.
type SeedPlace struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	Address    string   `json:"address"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	District   string   `json:"district"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Rating     float64  `json:"rating"`
	PriceLevel int      `json:"price_level"`
}

// Pipeline coordinates enrichment, storage, and embedding.
type Pipeline struct {
	catalog  Catalog
	embedder Embedder
	enricher enrich.Provider
	cfg      Config
	log      zerolog.Logger
}

// New builds a Pipeline. enricher may be nil to skip enrichment.
func New(catalog Catalog, emb Embedder, enricher enrich.Provider, cfg Config, log zerolog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		catalog:  catalog,
		embedder: emb,
		enricher: enricher,
		cfg:      cfg,
		log:      log,
	}
}

// LoadFile ingests every record from a JSON seed file.
func (p *Pipeline) LoadFile(ctx context.Context, path string) (*Statistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seeds []SeedPlace
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return p.Load(ctx, seeds)
}

// Load ingests the given records with a bounded worker pool.
func (p *Pipeline) Load(ctx context.Context, seeds []SeedPlace) (*Statistics, error) {
	start := time.Now()
	stats := &Statistics{}

	var (
		loaded atomic.Int32
		failed atomic.Int32
		mu     sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			if err := p.ingestOne(gctx, seed); err != nil {
				failed.Add(1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", seed.Name, err))
				mu.Unlock()
				p.log.Warn().Err(err).Str("place", seed.Name).Msg("failed to ingest place")
				return nil
			}
			loaded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Loaded = int(loaded.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = time.Since(start)

	p.log.Info().
		Int("loaded", stats.Loaded).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("ingest complete")
	return stats, nil
}

// ingestOne enriches, stores, and embeds a single record.
func (p *Pipeline) ingestOne(ctx context.Context, seed SeedPlace) error {
	place := &types.Place{
		ID:         seed.ID,
		Name:       seed.Name,
		Summary:    seed.Summary,
		Tags:       seed.Tags,
		Category:   seed.Category,
		District:   seed.District,
		Coord:      types.Coordinate{Lat: seed.Lat, Lng: seed.Lng},
		Rating:     seed.Rating,
		PriceLevel: seed.PriceLevel,
	}

	if p.enricher != nil {
		result, err := p.enricher.Enrich(ctx, seed.Name, seed.Address, p.cfg.City)
		if err != nil {
			// Enrichment is additive; a provider failure must not drop
			// the record.
			p.log.Warn().Err(err).Str("place", seed.Name).Msg("enrichment failed, ingesting raw record")
		} else {
			enrich.Apply(place, result)
		}
	}

	if !place.Coord.Valid() {
		return fmt.Errorf("invalid coordinate (%v, %v)", place.Coord.Lat, place.Coord.Lng)
	}

	if err := p.catalog.UpsertPlace(ctx, place); err != nil {
		return fmt.Errorf("failed to store place: %w", err)
	}

	emb, err := p.embedder.Embed(ctx, embeddingText(place))
	if err != nil {
		return fmt.Errorf("failed to embed place: %w", err)
	}
	return p.catalog.UpsertEmbedding(ctx, &types.Embedding{
		PlaceID:   place.ID,
		Vector:    emb.Vector,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
	})
}

// embeddingText is the searchable text a place is embedded from. It
// must stay aligned with the columns in the full-text index.
func embeddingText(p *types.Place) string {
	text := p.Name + " " + p.Summary
	for _, tag := range p.Tags {
		text += " " + tag
	}
	return text
}
