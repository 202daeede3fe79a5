package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/ports"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
	"github.com/samirrijal/murmur/internal/pkg/logging"
	"github.com/samirrijal/murmur/internal/pkg/metrics"
	"github.com/samirrijal/murmur/internal/pkg/telemetry"
)

const (
	// DefaultWindow is the trailing period a density query counts.
	DefaultWindow = 24 * time.Hour
	// MaxCellsPerQuery caps QueryMany.
	MaxCellsPerQuery = 64
	// MaxClockSkew is how far past the service clock a ping timestamp may be.
	MaxClockSkew = 5 * time.Minute

	defaultCacheTTL = 30 * time.Second
	queryFanout     = 8
)

// DensityService records location pings and answers "how many pings landed
// in this exact cell during the window?". It is an exact cell-key count, not
// a radius search: neighbouring cells are never included.
type DensityService struct {
	log       ports.LocationLog
	cache     ports.CacheService
	publisher ports.EventPublisher

	window    time.Duration
	precision int
	cacheTTL  time.Duration
	now       func() time.Time
}

// DensityOption customises a DensityService.
type DensityOption func(*DensityService)

// WithWindow sets the trailing window (default 24h).
func WithWindow(d time.Duration) DensityOption {
	return func(s *DensityService) { s.window = d }
}

// WithPrecision sets the cell length pings are bucketed at (default 6).
func WithPrecision(p int) DensityOption {
	return func(s *DensityService) { s.precision = p }
}

// WithCacheTTL sets how long a cached count may be served. Zero disables caching.
func WithCacheTTL(d time.Duration) DensityOption {
	return func(s *DensityService) { s.cacheTTL = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DensityOption {
	return func(s *DensityService) { s.now = now }
}

// NewDensityService creates a new DensityService. cache and publisher may be nil.
func NewDensityService(log ports.LocationLog, cache ports.CacheService, publisher ports.EventPublisher, opts ...DensityOption) *DensityService {
	s := &DensityService{
		log:       log,
		cache:     cache,
		publisher: publisher,
		window:    DefaultWindow,
		precision: geohash.DefaultPrecision,
		cacheTTL:  defaultCacheTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Precision returns the cell length used by the index.
func (s *DensityService) Precision() int { return s.precision }

// Window returns the trailing window counted by queries.
func (s *DensityService) Window() time.Duration { return s.window }

// Now returns the service clock.
func (s *DensityService) Now() time.Time { return s.now() }

// Record appends a ping for userID at loc. A zero at means now; a time more
// than MaxClockSkew ahead of the clock is rejected. Every call appends; there
// is no dedup or rate limiting here.
func (s *DensityService) Record(ctx context.Context, userID string, loc domain.GeoPoint, at time.Time) (*domain.LocationPing, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRecordPing)
	defer span.End()

	if userID == "" {
		metrics.PingRecordErrors.WithLabelValues("invalid_user").Inc()
		return nil, fmt.Errorf("record ping: %w", domain.ErrInvalidUser)
	}

	cell, err := geohash.Encode(loc.Lat, loc.Lon, s.precision)
	if err != nil {
		metrics.PingRecordErrors.WithLabelValues("invalid_coordinate").Inc()
		return nil, fmt.Errorf("record ping: %w", err)
	}
	span.SetAttributes(attribute.String("murmur.geohash", cell))

	now := s.now()
	if at.IsZero() {
		at = now
	} else if at.After(now.Add(MaxClockSkew)) {
		metrics.PingRecordErrors.WithLabelValues("future_timestamp").Inc()
		return nil, fmt.Errorf("record ping: %w: %s is more than %s ahead of %s",
			domain.ErrFutureTimestamp, at.UTC().Format(time.RFC3339), MaxClockSkew, now.UTC().Format(time.RFC3339))
	}

	ping := &domain.LocationPing{
		ID:       uuid.NewString(),
		UserID:   userID,
		Location: loc,
		Cell:     cell,
		Time:     at.UTC(),
	}

	if err := s.log.Append(ctx, ping); err != nil {
		metrics.PingRecordErrors.WithLabelValues("store").Inc()
		recordSpanError(span, err)
		return nil, &domain.StoreError{Op: "append ping", Err: err}
	}
	metrics.PingsRecorded.Inc()

	_ = s.InvalidateCell(ctx, cell)

	if s.publisher != nil {
		if err := s.publisher.PublishPing(ctx, ping); err != nil {
			metrics.EventPublishErrors.Inc()
			logging.FromContext(ctx).WarnContext(ctx, "publish ping event", "geohash", cell, "error", err)
		}
	}

	return ping, nil
}

// QueryDensity counts pings in exactly cell with timestamp >= now - window.
// A cell without recent pings yields a count of 0. A zero now means the
// service clock truncated to the second.
func (s *DensityService) QueryDensity(ctx context.Context, cell string, now time.Time) (*domain.Density, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanQueryDensity,
		trace.WithAttributes(attribute.String("murmur.geohash", cell)))
	defer span.End()

	box, err := s.checkCell(cell)
	if err != nil {
		metrics.DensityQueries.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if now.IsZero() {
		now = s.now().Truncate(time.Second)
	}

	count, gen, ok := s.cachedCount(ctx, cell, now)
	if !ok {
		start := time.Now()
		count, err = s.log.CountMatching(ctx, cell, now.Add(-s.window))
		metrics.DensityQueryDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DensityQueries.WithLabelValues("store_error").Inc()
			recordSpanError(span, err)
			return nil, &domain.StoreError{Op: "count pings", Err: err}
		}
		s.storeCount(ctx, cell, cachedDensity{Count: count, AsOf: now, Gen: gen})
	}
	metrics.DensityQueries.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("murmur.count", count))

	return newDensity(cell, count, now, box), nil
}

// QueryAt returns the density of the cell containing loc.
func (s *DensityService) QueryAt(ctx context.Context, loc domain.GeoPoint, now time.Time) (*domain.Density, error) {
	cell, err := geohash.Encode(loc.Lat, loc.Lon, s.precision)
	if err != nil {
		return nil, err
	}
	return s.QueryDensity(ctx, cell, now)
}

// QueryMany counts several cells concurrently and returns results in input
// order. The first failure cancels the remaining queries.
func (s *DensityService) QueryMany(ctx context.Context, cells []string, now time.Time) ([]domain.Density, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanQueryDensities,
		trace.WithAttributes(attribute.Int("murmur.cells", len(cells))))
	defer span.End()

	if len(cells) > MaxCellsPerQuery {
		return nil, fmt.Errorf("%w: %d cells, max %d", domain.ErrTooManyCells, len(cells), MaxCellsPerQuery)
	}
	for _, cell := range cells {
		if _, err := s.checkCell(cell); err != nil {
			return nil, err
		}
	}
	if now.IsZero() {
		now = s.now().Truncate(time.Second)
	}

	results := make([]domain.Density, len(cells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queryFanout)
	for i, cell := range cells {
		g.Go(func() error {
			d, err := s.QueryDensity(gctx, cell, now)
			if err != nil {
				return err
			}
			results[i] = *d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return results, nil
}

// InvalidateCell drops any cached count for cell and bumps its generation,
// so a count computed concurrently with the change is not stored as current.
// Used by Record and when another instance reports a new ping.
func (s *DensityService) InvalidateCell(ctx context.Context, cell string) error {
	if s.cache == nil {
		return nil
	}
	genTTL := int(s.window / time.Second)
	if genTTL < 1 {
		genTTL = 1
	}
	if err := s.cache.Set(ctx, densityGenKey(cell), []byte(uuid.NewString()), genTTL); err != nil {
		return err
	}
	return s.cache.Delete(ctx, densityCacheKey(cell))
}

func (s *DensityService) checkCell(cell string) (geohash.Box, error) {
	box, err := geohash.Decode(cell)
	if err != nil {
		return geohash.Box{}, err
	}
	if len(cell) != s.precision {
		return geohash.Box{}, fmt.Errorf("%w: cell %q has precision %d, index uses %d",
			domain.ErrPrecisionMismatch, cell, len(cell), s.precision)
	}
	return box, nil
}

// cachedDensity is the cache payload. A count answers exactly one reference
// time, so it is only reused for a query at AsOf. Gen is the cell generation
// read before counting; an entry from an older generation is ignored.
type cachedDensity struct {
	Count int       `json:"count"`
	AsOf  time.Time `json:"as_of"`
	Gen   string    `json:"gen,omitempty"`
}

func densityCacheKey(cell string) string {
	return "density:" + cell
}

func densityGenKey(cell string) string {
	return "density:gen:" + cell
}

func (s *DensityService) generation(ctx context.Context, cell string) string {
	data, err := s.cache.Get(ctx, densityGenKey(cell))
	if err != nil {
		return ""
	}
	return string(data)
}

// cachedCount returns the cached count for (cell, now). On a miss it returns
// the generation the caller should store its fresh count under.
func (s *DensityService) cachedCount(ctx context.Context, cell string, now time.Time) (int, string, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return 0, "", false
	}
	gen := s.generation(ctx, cell)
	data, err := s.cache.Get(ctx, densityCacheKey(cell))
	if err != nil {
		metrics.CacheMisses.WithLabelValues("density").Inc()
		return 0, gen, false
	}
	var c cachedDensity
	if err := json.Unmarshal(data, &c); err != nil || !c.AsOf.Equal(now) || c.Gen != gen {
		metrics.CacheMisses.WithLabelValues("density").Inc()
		return 0, gen, false
	}
	metrics.CacheHits.WithLabelValues("density").Inc()
	return c.Count, gen, true
}

func (s *DensityService) storeCount(ctx context.Context, cell string, c cachedDensity) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	ttl := int(s.cacheTTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	_ = s.cache.Set(ctx, densityCacheKey(cell), data, ttl)
}

func newDensity(cell string, count int, now time.Time, box geohash.Box) *domain.Density {
	lat, lon := box.Center()
	return &domain.Density{
		Cell:      cell,
		Count:     count,
		QueriedAt: now.UTC(),
		Center:    domain.GeoPoint{Lat: lat, Lon: lon},
		Bounds: domain.Bounds{
			MinLat: box.MinLat,
			MinLon: box.MinLon,
			MaxLat: box.MaxLat,
			MaxLon: box.MaxLon,
		},
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
