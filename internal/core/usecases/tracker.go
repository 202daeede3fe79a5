package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/ports"
	"github.com/samirrijal/murmur/internal/pkg/metrics"
	"github.com/samirrijal/murmur/internal/pkg/telemetry"
)

// DefaultTrackingInterval is how often Run samples the location source.
const DefaultTrackingInterval = 15 * time.Minute

// Tracker samples the device position and records it as a ping for the
// current session user.
type Tracker struct {
	density  *DensityService
	source   ports.LocationSource
	session  domain.Session
	interval time.Duration
	logger   *slog.Logger
}

// NewTracker creates a Tracker. A non-positive interval uses DefaultTrackingInterval.
func NewTracker(density *DensityService, source ports.LocationSource, session domain.Session, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultTrackingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		density:  density,
		source:   source,
		session:  session,
		interval: interval,
		logger:   logger.With("user_id", session.UserID),
	}
}

// Imprint takes one sample and records it. Location failures come back as
// errors matching domain.ErrLocationUnavailable.
func (t *Tracker) Imprint(ctx context.Context) (*domain.LocationPing, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanTrackerSample)
	defer span.End()

	loc, err := t.source.Sample(ctx)
	if err != nil {
		metrics.TrackerSamples.WithLabelValues("location_unavailable").Inc()
		recordSpanError(span, err)
		var le *domain.LocationError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &domain.LocationError{Reason: "sample failed", Err: err}
	}

	ping, err := t.density.Record(ctx, t.session.UserID, loc, time.Time{})
	if err != nil {
		metrics.TrackerSamples.WithLabelValues("record_failed").Inc()
		return nil, fmt.Errorf("imprint: %w", err)
	}
	metrics.TrackerSamples.WithLabelValues("ok").Inc()
	return ping, nil
}

// Run imprints immediately and then once per interval until ctx is done.
// Failed samples are logged and skipped; the next tick tries again.
func (t *Tracker) Run(ctx context.Context) error {
	t.tick(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	ping, err := t.Imprint(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		t.logger.WarnContext(ctx, "tracker sample skipped", "error", err)
		return
	}
	t.logger.DebugContext(ctx, "tracker sample recorded", "geohash", ping.Cell)
}
