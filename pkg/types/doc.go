// Package types defines the shared domain model for the recommendation
// engine: places, candidate scores, routes, and the result payload
// exchanged between the search index, the route builder, and the cache.
//
// All types here are value types from the engine's point of view. Places
// are owned by the catalog and immutable once loaded; routes and
// candidates are created per request and never mutated after construction.
package types
