// Package location provides ports.LocationSource implementations for
// environments without a device GPS: a fixed position and a recorded track.
package location

import (
	"context"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

// Static always reports the same position.
type Static struct {
	point domain.GeoPoint
}

// NewStatic validates the coordinate and returns a Static source.
func NewStatic(lat, lon float64) (*Static, error) {
	if err := geohash.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	return &Static{point: domain.GeoPoint{Lat: lat, Lon: lon}}, nil
}

// Sample returns the fixed position.
func (s *Static) Sample(ctx context.Context) (domain.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeoPoint{}, &domain.LocationError{Reason: "cancelled", Err: err}
	}
	return s.point, nil
}
