// Package searcher implements hybrid place retrieval: FTS5 full-text
// relevance and vector cosine similarity run concurrently over the
// catalog, and their normalized scores are fused with fixed weights
// (0.6 text, 0.4 vector by default).
//
// The index is stateless over an immutable catalog snapshot. Rebuilds
// happen by swapping the snapshot atomically; in-flight searches keep
// reading the snapshot they started with. Results are strictly ordered
// by composite score descending, place id ascending on ties, so a fixed
// snapshot always produces identical output for identical input.
//
// An empty catalog or a query with no token and no vector overlap yields
// an empty result, not an error. A catalog that cannot be queried at all
// surfaces types.ErrIndexUnavailable.
package searcher
