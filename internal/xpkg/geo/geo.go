// Package geo keeps the last known driver positions in Redis.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	geoKey      = "drivers:geo"
	posKey      = "driver:pos:"
	earthRadius = 6371.0
)

// ErrNoPosition is returned when a driver has not reported a position recently.
var ErrNoPosition = errors.New("no recent driver position")

type Position struct {
	DriverID   string    `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore builds a store whose positions expire after ttl without updates.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 && !(lat == 0 && lng == 0)
}

// Update records the position in the GEO set and the per-driver hash.
func (s *Store) Update(ctx context.Context, p Position) error {
	if !ValidCoordinates(p.Lat, p.Lng) {
		return fmt.Errorf("coordinates out of range: %v,%v", p.Lat, p.Lng)
	}
	pipe := s.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{Name: p.DriverID, Longitude: p.Lng, Latitude: p.Lat})
	pipe.HSet(ctx, posKey+p.DriverID,
		"lat", strconv.FormatFloat(p.Lat, 'f', -1, 64),
		"lng", strconv.FormatFloat(p.Lng, 'f', -1, 64),
		"at", p.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, posKey+p.DriverID, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the last position, or ErrNoPosition once it has expired.
func (s *Store) Get(ctx context.Context, driverID string) (Position, error) {
	vals, err := s.client.HGetAll(ctx, posKey+driverID).Result()
	if err != nil {
		return Position{}, err
	}
	if len(vals) == 0 {
		return Position{}, ErrNoPosition
	}
	p := Position{DriverID: driverID}
	if p.Lat, err = strconv.ParseFloat(vals["lat"], 64); err != nil {
		return Position{}, fmt.Errorf("corrupt position for %s: %w", driverID, err)
	}
	if p.Lng, err = strconv.ParseFloat(vals["lng"], 64); err != nil {
		return Position{}, fmt.Errorf("corrupt position for %s: %w", driverID, err)
	}
	p.RecordedAt, _ = time.Parse(time.RFC3339Nano, vals["at"])
	return p, nil
}

// Remove forgets the driver, e.g. when they go offline.
func (s *Store) Remove(ctx context.Context, driverID string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, geoKey, driverID)
	pipe.Del(ctx, posKey+driverID)
	_, err := pipe.Exec(ctx)
	return err
}

// Nearby lists driver ids within radiusKm of the point, nearest first.
// Members whose position hash expired are skipped.
func (s *Store) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error) {
	ids, err := s.client.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := ids[:0]
	for _, id := range ids {
		n, err := s.client.Exists(ctx, posKey+id).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			s.client.ZRem(ctx, geoKey, id)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

// TravelTime converts a distance to a duration at speedKmh.
func TravelTime(km, speedKmh float64) time.Duration {
	if speedKmh <= 0 {
		return 0
	}
	return time.Duration(km / speedKmh * float64(time.Hour))
}
