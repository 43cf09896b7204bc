package types

import "math"

// earthRadiusM is the mean Earth radius used for haversine distances.
const earthRadiusM = 6371000.0

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceM returns the haversine distance to o in meters.
func (c Coordinate) DistanceM(o Coordinate) float64 {
	lat1 := c.Lat * math.Pi / 180
	lng1 := c.Lng * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	lng2 := o.Lng * math.Pi / 180

	dlat := lat2 - lat1
	dlng := lng2 - lng1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Place is a catalog entry. Owned by the catalog and read-only for the
// engine; the id is stable and unique across the catalog's lifetime.
type Place struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Summary    string     `json:"summary"`
	Tags       []string   `json:"tags"`
	Category   string     `json:"category"`
	District   string     `json:"district"`
	Coord      Coordinate `json:"coord"`
	Rating     float64    `json:"rating"`
	PriceLevel int        `json:"price_level"`
}

// Embedding is a fixed-dimension vector tied 1:1 to a place.
type Embedding struct {
	PlaceID   int64
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
}
