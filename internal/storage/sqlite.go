package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/routeloom/routeloom/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) a catalog database and
// applies pending migrations.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Place operations

// UpsertPlace writes a place row and rebuilds its FTS entry. The FTS
// rowid equals the place id, and the indexed tag text is the
// space-joined tag list.
func (s *SQLiteStorage) UpsertPlace(ctx context.Context, place *types.Place) error {
	tagsJSON, err := json.Marshal(place.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	query := `
		INSERT INTO places (id, name, summary, tags_json, category, district, lat, lng, rating, price_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			summary = excluded.summary,
			tags_json = excluded.tags_json,
			category = excluded.category,
			district = excluded.district,
			lat = excluded.lat,
			lng = excluded.lng,
			rating = excluded.rating,
			price_level = excluded.price_level,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query,
		place.ID, place.Name, place.Summary, string(tagsJSON), place.Category, place.District,
		place.Coord.Lat, place.Coord.Lng, place.Rating, place.PriceLevel, now, now); err != nil {
		return fmt.Errorf("failed to upsert place: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM places_fts WHERE rowid = ?", place.ID); err != nil {
		return fmt.Errorf("failed to clear fts entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO places_fts (rowid, name, summary, tags) VALUES (?, ?, ?, ?)",
		place.ID, place.Name, place.Summary, strings.Join(place.Tags, " ")); err != nil {
		return fmt.Errorf("failed to index place: %w", err)
	}

	return tx.Commit()
}

const placeColumns = "id, name, summary, tags_json, category, district, lat, lng, rating, price_level"

// scanPlace reads one place row in placeColumns order.
func scanPlace(scan func(dest ...interface{}) error) (types.Place, error) {
	var p types.Place
	var tagsJSON sql.NullString
	var summary, category, district sql.NullString
	err := scan(&p.ID, &p.Name, &summary, &tagsJSON, &category, &district,
		&p.Coord.Lat, &p.Coord.Lng, &p.Rating, &p.PriceLevel)
	if err != nil {
		return types.Place{}, err
	}
	p.Summary = summary.String
	p.Category = category.String
	p.District = district.String
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &p.Tags); err != nil {
			return types.Place{}, fmt.Errorf("failed to decode tags for place %d: %w", p.ID, err)
		}
	}
	return p, nil
}

// GetPlace fetches one place by id.
func (s *SQLiteStorage) GetPlace(ctx context.Context, placeID int64) (*types.Place, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+placeColumns+" FROM places WHERE id = ?", placeID)
	p, err := scanPlace(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlaces fetches a batch of places by id, ordered by ascending id.
// Missing ids are silently skipped.
func (s *SQLiteStorage) GetPlaces(ctx context.Context, placeIDs []int64) ([]types.Place, error) {
	if len(placeIDs) == 0 {
		return []types.Place{}, nil
	}

	placeholders := strings.Repeat("?,", len(placeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(placeIDs))
	for i, id := range placeIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+placeColumns+" FROM places WHERE id IN ("+placeholders+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer func() { _ = rows.Close() }()

	places := make([]types.Place, 0, len(placeIDs))
	for rows.Next() {
		p, err := scanPlace(rows.Scan)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

// ListPlaceIDs returns every place id in ascending order.
func (s *SQLiteStorage) ListPlaceIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM places ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPlaces returns the number of catalog entries.
func (s *SQLiteStorage) CountPlaces(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM places").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Embedding operations

// UpsertEmbedding writes the vector for a place, replacing any previous one.
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, emb *types.Embedding) error {
	query := `
		INSERT INTO embeddings (place_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		emb.PlaceID, serializeVector(emb.Vector), emb.Dimension, emb.Provider, emb.Model, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// GetEmbedding fetches the vector for a place.
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, placeID int64) (*types.Embedding, error) {
	var blob []byte
	emb := types.Embedding{PlaceID: placeID}
	err := s.db.QueryRowContext(ctx,
		"SELECT vector, dimension, provider, model FROM embeddings WHERE place_id = ?", placeID).
		Scan(&blob, &emb.Dimension, &emb.Provider, &emb.Model)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emb.Vector = deserializeVector(blob)
	return &emb, nil
}

// Feedback operations

// SaveFeedback appends one feedback row.
func (s *SQLiteStorage) SaveFeedback(ctx context.Context, fb *Feedback) error {
	routeJSON, err := json.Marshal(fb.RouteIDs)
	if err != nil {
		return fmt.Errorf("failed to encode route ids: %w", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO feedback (created_at, route_json, useful, note) VALUES (?, ?, ?, ?)",
		now, string(routeJSON), fb.Useful, fb.Note)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	fb.ID = id
	fb.CreatedAt = now
	return nil
}

// Health probes the place table and the FTS index.
func (s *SQLiteStorage) Health(ctx context.Context) HealthStatus {
	var status HealthStatus
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM places").Scan(&n); err == nil {
		status.PlacesReachable = true
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM places_fts").Scan(&n); err == nil {
		status.FTSReachable = true
	}
	return status
}
