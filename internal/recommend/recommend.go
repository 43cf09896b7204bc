package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/routeloom/routeloom/internal/cache"
	"github.com/routeloom/routeloom/pkg/types"
)

// Searcher retrieves ranked candidates for a query over the current
// index snapshot.
type Searcher interface {
	Search(ctx context.Context, vibe string, intents []string, maxResults int) ([]types.CandidateScore, error)
}

// RouteBuilder assembles a route from ranked candidates.
type RouteBuilder interface {
	Build(candidates []types.CandidateScore, origin types.Coordinate) types.RouteResult
}

// ResultCache is the two-tier cache consulted per fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, cache.Tier, bool)
	Do(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, cache.Tier, error)
	DurableUp() bool
}

// Outcome carries the result plus the observability fields every
// invocation must report.
type Outcome struct {
	Result    types.RouteResult
	Tier      cache.Tier
	Elapsed   time.Duration
	DurableOK bool
}

// Config tunes the coordinator.
type Config struct {
	MaxResults int // candidates requested from the searcher (default 20)
}

// Coordinator runs the recommendation pipeline.
type Coordinator struct {
	searcher Searcher
	builder  RouteBuilder
	cache    ResultCache
	cfg      Config
	log      zerolog.Logger
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(searcher Searcher, builder RouteBuilder, results ResultCache, cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	return &Coordinator{
		searcher: searcher,
		builder:  builder,
		cache:    results,
		cfg:      cfg,
		log:      log,
	}
}

// Recommend returns a route for the request, serving from cache when
// possible. Concurrent identical requests share one computation. The
// returned result is always a fresh decode of the cached payload, so
// callers may mutate it freely.
func (c *Coordinator) Recommend(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	out := Outcome{Tier: cache.TierMiss}

	if err := req.Validate(); err != nil {
		out.Elapsed = time.Since(start)
		return out, err
	}

	fp := req.Fingerprint()
	payload, tier, err := c.cache.Do(ctx, fp, func(cctx context.Context) ([]byte, error) {
		return c.compute(cctx, req)
	})
	out.Tier = tier
	out.DurableOK = c.cache.DurableUp()
	if err != nil {
		out.Elapsed = time.Since(start)
		return out, err
	}

	if err := json.Unmarshal(payload, &out.Result); err != nil {
		out.Elapsed = time.Since(start)
		return out, fmt.Errorf("failed to decode cached result for %s: %w", fp, err)
	}

	out.Elapsed = time.Since(start)
	c.log.Debug().
		Str("fingerprint", fp).
		Str("tier", string(tier)).
		Dur("elapsed", out.Elapsed).
		Int("routes", len(out.Result.Routes)).
		Msg("recommendation served")
	return out, nil
}

// compute is the single-flight body: search, build, serialize.
func (c *Coordinator) compute(ctx context.Context, req Request) ([]byte, error) {
	candidates, err := c.searcher.Search(ctx, req.Vibe, req.Intents, c.cfg.MaxResults)
	if err != nil {
		return nil, err
	}

	result := c.builder.Build(candidates, req.Origin())

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize route result: %w", err)
	}
	return payload, nil
}
