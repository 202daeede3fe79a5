package ports

import (
	"context"

	"github.com/samirrijal/murmur/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPing(ctx context.Context, ping *domain.LocationPing) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribePings(ctx context.Context, handler func(ctx context.Context, ping *domain.LocationPing) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// LocationSource supplies the current position of the device being tracked.
// Failures are reported as *domain.LocationError.
type LocationSource interface {
	Sample(ctx context.Context) (domain.GeoPoint, error)
}
