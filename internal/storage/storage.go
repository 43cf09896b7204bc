package storage

import (
	"context"
	"time"

	"github.com/routeloom/routeloom/pkg/types"
)

// Storage defines the catalog persistence interface consumed by the
// search index, the ingestion pipeline, and the HTTP surface.
type Storage interface {
	// Place operations
	UpsertPlace(ctx context.Context, place *types.Place) error
	GetPlace(ctx context.Context, placeID int64) (*types.Place, error)
	GetPlaces(ctx context.Context, placeIDs []int64) ([]types.Place, error)
	ListPlaceIDs(ctx context.Context) ([]int64, error)
	CountPlaces(ctx context.Context) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, emb *types.Embedding) error
	GetEmbedding(ctx context.Context, placeID int64) (*types.Embedding, error)

	// Retrieval primitives used by the search index
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)
	SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error)

	// Feedback operations
	SaveFeedback(ctx context.Context, fb *Feedback) error

	// Health reports reachability of the place table and the FTS index
	Health(ctx context.Context) HealthStatus

	Close() error
}

// TextResult is one full-text match. Score is the raw FTS5 bm25 value,
// where more negative means a better match; normalization is the search
// index's concern.
type TextResult struct {
	PlaceID int64
	Score   float64
}

// VectorResult is one k-NN match with cosine similarity in [-1,1].
type VectorResult struct {
	PlaceID    int64
	Similarity float64
}

// Feedback is a free-form user verdict on a returned route.
type Feedback struct {
	ID        int64
	CreatedAt time.Time
	RouteIDs  []int64
	Useful    bool
	Note      string
}

// HealthStatus reports which catalog structures are reachable.
type HealthStatus struct {
	PlacesReachable bool
	FTSReachable    bool
}
