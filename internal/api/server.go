package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/routeloom/routeloom/internal/cache"
	"github.com/routeloom/routeloom/internal/recommend"
	"github.com/routeloom/routeloom/internal/storage"
	"github.com/routeloom/routeloom/pkg/types"
)

// Default warmup origin: Bangkok city center.
const (
	defaultWarmLat = 13.7563
	defaultWarmLng = 100.5018
)

const searchModeHeader = "FTS+VEC"

// Recommender is the coordinator surface the server needs.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (recommend.Outcome, error)
	Warm(ctx context.Context, city, day string, combos []recommend.Combo, lat, lng float64) (recommend.WarmReport, error)
}

// CatalogReader serves place lookups, feedback writes, and health
// probes against the catalog.
type CatalogReader interface {
	GetPlace(ctx context.Context, placeID int64) (*types.Place, error)
	SaveFeedback(ctx context.Context, fb *storage.Feedback) error
	Health(ctx context.Context) storage.HealthStatus
}

// Server is the HTTP transport over the recommendation engine.
type Server struct {
	recommender Recommender
	catalog     CatalogReader
	metrics     *metrics
	log         zerolog.Logger
	router      chi.Router
}

// NewServer builds the router and handlers. reg may be nil, in which
// case the server uses its own registry.
func NewServer(recommender Recommender, catalog CatalogReader, reg *prometheus.Registry, log zerolog.Logger) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		recommender: recommender,
		catalog:     catalog,
		metrics:     newMetrics(reg),
		log:         log,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/places/recommend", s.handleRecommend)
	r.Get("/api/places/{placeID}", s.handlePlace)
	r.Post("/api/cache/warm", s.handleWarm)
	r.Post("/api/feedback", s.handleFeedback)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.catalog.Health(r.Context())

	db, fts := "up", "up"
	if !status.PlacesReachable {
		db = "down"
	}
	if !status.FTSReachable {
		fts = "down"
	}

	w.Header().Set("X-Search", searchModeHeader)
	w.Header().Set("X-Debug", fmt.Sprintf("time_ms=%.2f;db=%s;rank=health", msSince(start), db))

	code := http.StatusOK
	if db == "down" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{
		"ok":  db == "up" && fts == "up",
		"db":  db,
		"fts": fts,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		s.writeError(w, http.StatusBadRequest, "lat and lng must be valid numbers")
		return
	}

	req := recommend.Request{
		Vibe:    q.Get("vibe"),
		Intents: splitIntents(q.Get("intents")),
		Lat:     lat,
		Lng:     lng,
	}

	out, err := s.recommender.Recommend(r.Context(), req)
	if err != nil {
		s.writeRecommendError(w, err)
		return
	}

	s.observeTier(out.Tier)

	cacheStatus := "HIT"
	if out.Tier == cache.TierCompute || out.Tier == cache.TierMiss {
		cacheStatus = "MISS"
	}
	db := "up"
	if !out.DurableOK {
		db = "down"
	}

	w.Header().Set("X-Search", searchModeHeader)
	w.Header().Set("X-Cache-Status", cacheStatus)
	w.Header().Set("X-Cache-Store", string(out.Tier))
	w.Header().Set("X-Debug", fmt.Sprintf("time_ms=%.2f;db=%s;rank=recommend;cache=%s;store=%s",
		out.Elapsed.Seconds()*1000, db, cacheStatus, out.Tier))
	s.writeJSON(w, http.StatusOK, out.Result)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	placeID, err := strconv.ParseInt(chi.URLParam(r, "placeID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "place id must be an integer")
		return
	}

	place, err := s.catalog.GetPlace(r.Context(), placeID)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "place not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("place_id", placeID).Msg("place lookup failed")
		s.writeError(w, http.StatusInternalServerError, "place lookup failed")
		return
	}

	w.Header().Set("X-Search", searchModeHeader)
	w.Header().Set("X-Debug", fmt.Sprintf("time_ms=%.2f;db=up;rank=id_lookup", msSince(start)))
	s.writeJSON(w, http.StatusOK, place)
}

type warmRequest struct {
	City   string  `json:"city"`
	Day    string  `json:"day"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Combos []struct {
		Vibe    string   `json:"vibe"`
		Intents []string `json:"intents"`
	} `json:"combos"`
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid warm request body")
		return
	}
	if req.City == "" || len(req.Combos) == 0 {
		s.writeError(w, http.StatusBadRequest, "city and combos are required")
		return
	}
	if req.Lat == 0 && req.Lng == 0 {
		req.Lat, req.Lng = defaultWarmLat, defaultWarmLng
	}
	if req.Day == "" {
		req.Day = time.Now().Format("2006-01-02")
	}

	combos := make([]recommend.Combo, len(req.Combos))
	for i, c := range req.Combos {
		combos[i] = recommend.Combo{Vibe: c.Vibe, Intents: c.Intents}
	}

	report, err := s.recommender.Warm(r.Context(), req.City, req.Day, combos, req.Lat, req.Lng)
	if err != nil {
		s.log.Error().Err(err).Str("city", req.City).Msg("cache warmup failed")
		s.writeError(w, http.StatusInternalServerError, "cache warmup failed")
		return
	}

	w.Header().Set("X-Search", searchModeHeader)
	w.Header().Set("X-Debug", fmt.Sprintf("time_ms=%.2f;db=up;rank=warmup", msSince(start)))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"warmed":    report.Warmed,
		"refreshed": report.Refreshed,
		"failed":    report.Failed,
		"keys":      report.Keys,
		"city":      req.City,
		"day":       req.Day,
	})
}

type feedbackRequest struct {
	Route  []int64 `json:"route"`
	Useful bool    `json:"useful"`
	Note   string  `json:"note"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid feedback body")
		return
	}
	if len(req.Route) == 0 {
		s.writeError(w, http.StatusBadRequest, "route is required")
		return
	}

	fb := &storage.Feedback{
		CreatedAt: time.Now().UTC(),
		RouteIDs:  req.Route,
		Useful:    req.Useful,
		Note:      req.Note,
	}
	if err := s.catalog.SaveFeedback(r.Context(), fb); err != nil {
		s.log.Error().Err(err).Msg("failed to save feedback")
		s.writeError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}

	w.Header().Set("X-Search", searchModeHeader)
	w.Header().Set("X-Debug", fmt.Sprintf("time_ms=%.2f;db=up;rank=feedback", msSince(start)))
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":     fb.ID,
		"route":  req.Route,
		"useful": req.Useful,
		"note":   req.Note,
	})
}

// writeRecommendError maps pipeline errors onto HTTP statuses and
// records the outcome.
func (s *Server) writeRecommendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrIndexUnavailable):
		// Retryable: the snapshot may be mid-swap.
		w.Header().Set("Retry-After", "1")
		s.writeError(w, http.StatusServiceUnavailable, "search index unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.log.Error().Err(err).Msg("recommendation failed")
		s.writeError(w, http.StatusInternalServerError, "recommendation failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// observeTier records which cache tier served a recommendation.
func (s *Server) observeTier(tier cache.Tier) {
	s.metrics.cacheTier.WithLabelValues(string(tier)).Inc()
}

func splitIntents(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
