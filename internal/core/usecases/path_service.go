package usecases

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/ports"
	"github.com/samirrijal/murmur/internal/pkg/geospatial"
	"github.com/samirrijal/murmur/internal/pkg/telemetry"
)

// DayLayout is the date format accepted by DailyPath.
const DayLayout = "2006-01-02"

// PathService rebuilds the footprint trail a user left during one day.
type PathService struct {
	log  ports.LocationLog
	fade time.Duration
}

// NewPathService creates a PathService. Points fade to zero freshness after fade.
func NewPathService(log ports.LocationLog, fade time.Duration) *PathService {
	if fade <= 0 {
		fade = DefaultWindow
	}
	return &PathService{log: log, fade: fade}
}

// DailyPath returns the pings userID recorded between local midnight and
// 23:59:59.999 of day, oldest first. day is interpreted in loc (UTC if nil).
func (s *PathService) DailyPath(ctx context.Context, userID, day string, loc *time.Location, now time.Time) (*domain.UserPath, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanDailyPath,
		trace.WithAttributes(attribute.String("murmur.day", day)))
	defer span.End()

	if userID == "" {
		return nil, fmt.Errorf("daily path: %w", domain.ErrInvalidUser)
	}
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return nil, fmt.Errorf("daily path: invalid day %q: %w", day, err)
	}
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)

	pings, err := s.log.ListByUser(ctx, userID, start, end)
	if err != nil {
		recordSpanError(span, err)
		return nil, &domain.StoreError{Op: "list pings", Err: err}
	}

	path := &domain.UserPath{
		UserID: userID,
		Day:    day,
		Points: make([]domain.PathPoint, 0, len(pings)),
	}
	trail := make([]geospatial.Point, 0, len(pings))
	for _, p := range pings {
		path.Points = append(path.Points, domain.PathPoint{
			Location:  p.Location,
			Cell:      p.Cell,
			Time:      p.Time,
			Freshness: Freshness(p.Time, now, s.fade),
		})
		trail = append(trail, geospatial.Point{Lat: p.Location.Lat, Lon: p.Location.Lon})
	}
	path.DistanceMeters = geospatial.PathLength(trail)
	span.SetAttributes(attribute.Int("murmur.points", len(path.Points)))

	return path, nil
}

// Freshness is 1 for a ping recorded at now and decays linearly to 0 at
// now - fade. Pings from the future count as fresh.
func Freshness(at, now time.Time, fade time.Duration) float64 {
	age := now.Sub(at)
	if age <= 0 {
		return 1
	}
	f := 1 - float64(age)/float64(fade)
	if f < 0 {
		return 0
	}
	return f
}
