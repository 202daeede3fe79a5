package location

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

// Replay plays back a recorded track one point per Sample. Once the track is
// exhausted every further Sample fails with a LocationError, unless Loop is set.
type Replay struct {
	mu     sync.Mutex
	points []domain.GeoPoint
	next   int
	loop   bool
}

// NewReplay returns a Replay over points.
func NewReplay(points []domain.GeoPoint, loop bool) *Replay {
	return &Replay{points: points, loop: loop}
}

// Sample returns the next point of the track.
func (r *Replay) Sample(ctx context.Context) (domain.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeoPoint{}, &domain.LocationError{Reason: "cancelled", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.points) {
		if !r.loop || len(r.points) == 0 {
			return domain.GeoPoint{}, &domain.LocationError{Reason: "track exhausted"}
		}
		r.next = 0
	}
	p := r.points[r.next]
	r.next++
	return p, nil
}

// LoadTrack opens a CSV track file. See ParseTrack.
func LoadTrack(path string) ([]domain.GeoPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTrack(f)
}

// ParseTrack reads a CSV track with a header row naming "lat" and "lon"
// columns (in any order, extra columns ignored).
func ParseTrack(r io.Reader) ([]domain.GeoPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	latCol, okLat := cols["lat"]
	lonCol, okLon := cols["lon"]
	if !okLat || !okLon {
		return nil, errors.New("track header must contain lat and lon")
	}

	var points []domain.GeoPoint
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if latCol >= len(record) || lonCol >= len(record) {
			return nil, fmt.Errorf("line %d: missing lat/lon", line)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		if err := geohash.ValidateCoordinate(lat, lon); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, domain.GeoPoint{Lat: lat, Lon: lon})
	}
	return points, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		// Strip BOM
		h = strings.TrimPrefix(h, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}
