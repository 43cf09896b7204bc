package types

// CandidateScore is a transient per-request record produced by the search
// index: one retrieved place with its text, vector, and fused scores.
// Never persisted.
type CandidateScore struct {
	Place       Place
	TextScore   float64 // normalized full-text relevance in [0,1]
	VectorScore float64 // normalized cosine similarity in [0,1]
	Composite   float64 // weighted fusion of the two, clamped to [0,1]
}

// Route is an ordered walk over distinct places. Partial marks routes
// that either have fewer than the requested number of steps or needed the
// distance window relaxed to complete.
type Route struct {
	Steps          []int64 `json:"steps"`
	TotalDistanceM float64 `json:"total_distance_m"`
	FitScore       float64 `json:"fit_score"`
	Partial        bool    `json:"partial,omitempty"`
}

// Alternative is a drop-in replacement for one route step, ranked by
// similarity to the place it would replace.
type Alternative struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Alternatives holds per-step replacement candidates. Only step 2 is
// replaceable today; the struct keeps the wire shape stable if more steps
// become replaceable.
type Alternatives struct {
	Step2 []Alternative `json:"step2,omitempty"`
}

// RouteResult is the cacheable recommendation payload.
type RouteResult struct {
	Routes       []Route      `json:"routes"`
	Alternatives Alternatives `json:"alternatives"`
}

// Validate checks route invariants: pairwise-distinct steps, a fit score
// inside [0,1], and a non-negative distance.
func (r *Route) Validate() error {
	seen := make(map[int64]struct{}, len(r.Steps))
	for _, id := range r.Steps {
		if _, dup := seen[id]; dup {
			return ErrDuplicateStep
		}
		seen[id] = struct{}{}
	}
	if r.FitScore < 0 || r.FitScore > 1 {
		return ErrScoreOutOfRange
	}
	if r.TotalDistanceM < 0 {
		return ErrNegativeDistance
	}
	return nil
}
