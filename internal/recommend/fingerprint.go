package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/routeloom/routeloom/pkg/types"
)

// fingerprintVersion is bumped whenever the key derivation changes, so
// stale durable entries from an older scheme are never served.
const fingerprintVersion = "v1"

// geoBucketDecimals controls origin bucketing. Three decimal degrees is
// roughly a 110m grid, so nearby callers share cache entries.
const geoBucketDecimals = 3

// Request is a validated recommendation request.
type Request struct {
	Vibe    string   `json:"vibe"`
	Intents []string `json:"intents"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
}

// Origin returns the request's starting coordinate.
func (r Request) Origin() types.Coordinate {
	return types.Coordinate{Lat: r.Lat, Lng: r.Lng}
}

// Validate rejects malformed requests before any cache or index work.
func (r Request) Validate() error {
	if !r.Origin().Valid() {
		return fmt.Errorf("%w: coordinate (%v, %v) out of range", types.ErrInvalidRequest, r.Lat, r.Lng)
	}
	if normalizeVibe(r.Vibe) == "" && len(normalizeIntents(r.Intents)) == 0 {
		return fmt.Errorf("%w: vibe and intents both empty", types.ErrInvalidRequest)
	}
	return nil
}

// Fingerprint derives the cache key. Two requests that normalize to the
// same vibe, intent set, and ~110m origin bucket share an entry.
func (r Request) Fingerprint() string {
	var b strings.Builder
	b.WriteString("rec:")
	b.WriteString(fingerprintVersion)
	b.WriteString(":")
	b.WriteString(normalizeVibe(r.Vibe))
	b.WriteString("|")
	b.WriteString(strings.Join(normalizeIntents(r.Intents), ","))
	b.WriteString("|")
	b.WriteString(bucket(r.Lat))
	b.WriteString(",")
	b.WriteString(bucket(r.Lng))
	return b.String()
}

// normalizeVibe lowercases the vibe and collapses interior whitespace.
func normalizeVibe(vibe string) string {
	return strings.Join(strings.Fields(strings.ToLower(vibe)), " ")
}

// normalizeIntents lowercases, trims, deduplicates, and sorts the
// intent tags. Input order never affects the fingerprint.
func normalizeIntents(intents []string) []string {
	seen := make(map[string]bool, len(intents))
	out := make([]string, 0, len(intents))
	for _, intent := range intents {
		tag := strings.ToLower(strings.TrimSpace(intent))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func bucket(deg float64) string {
	scale := math.Pow10(geoBucketDecimals)
	v := math.Round(deg*scale) / scale
	if v == 0 {
		// Coordinates just south or west of zero round to -0, which
		// would format as "-0.000" and split the bucket at the meridian.
		v = 0
	}
	return fmt.Sprintf("%.*f", geoBucketDecimals, v)
}
