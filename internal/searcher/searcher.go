package searcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/routeloom/routeloom/internal/embedder"
	"github.com/routeloom/routeloom/internal/storage"
	"github.com/routeloom/routeloom/pkg/types"
)

// Catalog is the read-only slice of the storage layer the index needs.
type Catalog interface {
	SearchText(ctx context.Context, query string, limit int) ([]storage.TextResult, error)
	SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.VectorResult, error)
	GetPlaces(ctx context.Context, placeIDs []int64) ([]types.Place, error)
}

// Config holds the fusion parameters. Weights are fixed per deployment
// and documented here rather than derived: text carries slightly more
// signal than the trigram vectors for short vibe queries.
type Config struct {
	TextWeight   float64       // default 0.6
	VectorWeight float64       // default 0.4
	QueryTimeout time.Duration // per-search budget for catalog calls; 0 means none
}

// DefaultConfig returns the documented fusion weights.
func DefaultConfig() Config {
	return Config{
		TextWeight:   0.6,
		VectorWeight: 0.4,
		QueryTimeout: 2 * time.Second,
	}
}

// Index performs hybrid retrieval over an atomically swappable catalog
// snapshot.
type Index struct {
	snapshot atomic.Pointer[snapshotRef]
	embedder embedder.Embedder
	cfg      Config
}

// snapshotRef wraps the catalog interface so the atomic pointer has a
// single concrete type.
type snapshotRef struct {
	catalog Catalog
}

// New creates an Index over the given catalog snapshot.
func New(catalog Catalog, emb embedder.Embedder, cfg Config) *Index {
	if cfg.TextWeight <= 0 && cfg.VectorWeight <= 0 {
		cfg = DefaultConfig()
	}
	idx := &Index{
		embedder: emb,
		cfg:      cfg,
	}
	idx.snapshot.Store(&snapshotRef{catalog: catalog})
	return idx
}

// Swap atomically replaces the catalog snapshot. In-flight searches keep
// the snapshot they started with; new searches observe the new one.
func (idx *Index) Swap(catalog Catalog) {
	idx.snapshot.Store(&snapshotRef{catalog: catalog})
}

// branchResult carries one retrieval branch's outcome.
type branchResult struct {
	text   []storage.TextResult
	vector []storage.VectorResult
	err    error
}

// Search retrieves up to maxResults candidates for the vibe and intents,
// ordered by composite score descending and place id ascending on ties.
func (idx *Index) Search(ctx context.Context, vibe string, intents []string, maxResults int) ([]types.CandidateScore, error) {
	if maxResults <= 0 {
		maxResults = 20
	}

	ref := idx.snapshot.Load()
	if ref == nil || ref.catalog == nil {
		return nil, fmt.Errorf("%w: no catalog snapshot", types.ErrIndexUnavailable)
	}
	catalog := ref.catalog

	if idx.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, idx.cfg.QueryTimeout)
		defer cancel()
	}

	query := buildQueryText(vibe, intents)
	if query == "" {
		return []types.CandidateScore{}, nil
	}

	// Both branches overscan so fusion has enough overlap to rank.
	fetch := maxResults * 2

	textChan := make(chan branchResult, 1)
	vectorChan := make(chan branchResult, 1)

	go func() {
		var res branchResult
		res.text, res.err = catalog.SearchText(ctx, query, fetch)
		select {
		case textChan <- res:
		case <-ctx.Done():
		}
	}()

	go func() {
		var res branchResult
		emb, err := idx.embedder.Embed(ctx, query)
		if err != nil {
			res.err = fmt.Errorf("failed to embed query: %w", err)
		} else {
			res.vector, res.err = catalog.SearchVector(ctx, emb.Vector, fetch)
		}
		select {
		case vectorChan <- res:
		case <-ctx.Done():
		}
	}()

	var textRes, vectorRes branchResult
	var textDone, vectorDone bool
	for !textDone || !vectorDone {
		select {
		case textRes = <-textChan:
			textDone = true
		case vectorRes = <-vectorChan:
			vectorDone = true
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, ctx.Err())
		}
	}

	// One branch may fail; the other still yields partial results.
	if textRes.err != nil && vectorRes.err != nil {
		return nil, fmt.Errorf("%w: text=%v, vector=%v", types.ErrIndexUnavailable, textRes.err, vectorRes.err)
	}

	fused := fuse(textRes.text, vectorRes.vector, idx.cfg.TextWeight, idx.cfg.VectorWeight)
	if len(fused) == 0 {
		return []types.CandidateScore{}, nil
	}

	candidates, err := idx.hydrate(ctx, catalog, fused)
	if err != nil {
		return nil, err
	}

	if maxResults > len(candidates) {
		maxResults = len(candidates)
	}
	return candidates[:maxResults], nil
}

// fusedScore accumulates the two normalized branch scores for one place.
type fusedScore struct {
	placeID   int64
	text      float64
	vector    float64
	composite float64
}

// fuse normalizes both branches to [0,1] and combines them with the
// configured weights.
func fuse(text []storage.TextResult, vector []storage.VectorResult, wText, wVec float64) []fusedScore {
	scores := make(map[int64]*fusedScore, len(text)+len(vector))

	get := func(id int64) *fusedScore {
		fs, ok := scores[id]
		if !ok {
			fs = &fusedScore{placeID: id}
			scores[id] = fs
		}
		return fs
	}

	for _, tr := range text {
		get(tr.PlaceID).text = normalizeBM25(tr.Score)
	}
	for _, vr := range vector {
		get(vr.PlaceID).vector = clamp01(vr.Similarity)
	}

	fused := make([]fusedScore, 0, len(scores))
	for _, fs := range scores {
		fs.composite = clamp01(wText*fs.text + wVec*fs.vector)
		fused = append(fused, *fs)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].composite != fused[j].composite {
			return fused[i].composite > fused[j].composite
		}
		return fused[i].placeID < fused[j].placeID
	})
	return fused
}

// hydrate loads the place records for fused scores, preserving fused
// order and dropping ids the catalog no longer has.
func (idx *Index) hydrate(ctx context.Context, catalog Catalog, fused []fusedScore) ([]types.CandidateScore, error) {
	ids := make([]int64, len(fused))
	for i, fs := range fused {
		ids[i] = fs.placeID
	}

	places, err := catalog.GetPlaces(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load places: %v", types.ErrIndexUnavailable, err)
	}

	byID := make(map[int64]types.Place, len(places))
	for _, p := range places {
		byID[p.ID] = p
	}

	candidates := make([]types.CandidateScore, 0, len(fused))
	for _, fs := range fused {
		place, ok := byID[fs.placeID]
		if !ok {
			continue
		}
		candidates = append(candidates, types.CandidateScore{
			Place:       place,
			TextScore:   fs.text,
			VectorScore: fs.vector,
			Composite:   fs.composite,
		})
	}
	return candidates, nil
}

// buildQueryText joins the vibe and intents into one retrieval query.
func buildQueryText(vibe string, intents []string) string {
	parts := make([]string, 0, len(intents)+1)
	if v := strings.TrimSpace(vibe); v != "" {
		parts = append(parts, v)
	}
	for _, intent := range intents {
		if s := strings.TrimSpace(intent); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// normalizeBM25 maps a raw FTS5 bm25 value (negative, more negative is
// better) onto [0,1) monotonically.
func normalizeBM25(score float64) float64 {
	raw := -score
	if raw <= 0 {
		return 0
	}
	return raw / (raw + 1.0)
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
