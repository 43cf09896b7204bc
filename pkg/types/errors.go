package types

import "errors"

// Domain errors shared across the engine
var (
	// ErrInvalidRequest marks malformed recommendation input (empty vibe
	// and intents, non-finite coordinate). Rejected before any cache or
	// index work.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrIndexUnavailable means the search index could not be queried.
	// Fatal for the current request and retryable by the caller; never
	// written into the cache.
	ErrIndexUnavailable = errors.New("search index unavailable")

	// Route validation errors
	ErrDuplicateStep    = errors.New("route steps must be distinct")
	ErrScoreOutOfRange  = errors.New("fit score must be between 0 and 1")
	ErrNegativeDistance = errors.New("total distance cannot be negative")
)
