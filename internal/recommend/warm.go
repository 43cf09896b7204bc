package recommend

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// warmWorkers bounds how many combinations warm in parallel.
const warmWorkers = 4

// Combo is one (vibe, intents) combination to precompute.
type Combo struct {
	Vibe    string
	Intents []string
}

// WarmReport summarizes a warmup run.
type WarmReport struct {
	Warmed    int      `json:"warmed"`
	Refreshed int      `json:"refreshed"`
	Failed    int      `json:"failed"`
	Keys      []string `json:"keys"`
}

// Warm precomputes results for the given combinations at a shared
// origin, going through the normal single-flight compute path so a
// concurrent live request for the same fingerprint simply joins the
// warmup computation. city and day scope the run for logging only; the
// cache key depends on vibe, intents, and origin. Individual failures
// are counted, not fatal.
func (c *Coordinator) Warm(ctx context.Context, city, day string, combos []Combo, lat, lng float64) (WarmReport, error) {
	var (
		mu     sync.Mutex
		report WarmReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmWorkers)

	for _, combo := range combos {
		combo := combo
		g.Go(func() error {
			req := Request{Vibe: combo.Vibe, Intents: combo.Intents, Lat: lat, Lng: lng}
			if err := req.Validate(); err != nil {
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}

			fp := req.Fingerprint()
			_, tier, hit := c.cache.Get(gctx, fp)
			if hit {
				mu.Lock()
				report.Refreshed++
				report.Keys = append(report.Keys, fp)
				mu.Unlock()
				c.log.Debug().Str("fingerprint", fp).Str("tier", string(tier)).Msg("warm target already cached")
				return nil
			}

			if _, err := c.Recommend(gctx, req); err != nil {
				mu.Lock()
				report.Failed++
				mu.Unlock()
				c.log.Warn().Err(err).Str("fingerprint", fp).Msg("warmup computation failed")
				return nil
			}

			mu.Lock()
			report.Warmed++
			report.Keys = append(report.Keys, fp)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	sort.Strings(report.Keys)

	c.log.Info().
		Str("city", city).
		Str("day", day).
		Int("warmed", report.Warmed).
		Int("refreshed", report.Refreshed).
		Int("failed", report.Failed).
		Msg("cache warmup complete")
	return report, nil
}
