package ports

import (
	"context"
	"time"

	"github.com/samirrijal/murmur/internal/core/domain"
)

// LocationLog is the append-only store of location pings.
type LocationLog interface {
	Append(ctx context.Context, ping *domain.LocationPing) error
	// CountMatching counts pings whose cell equals cell exactly and whose
	// timestamp is at or after since.
	CountMatching(ctx context.Context, cell string, since time.Time) (int, error)
	// ListByUser returns a user's pings in [from, to], oldest first.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.LocationPing, error)
}

// LocationRetention prunes old pings. It is a storage maintenance concern and
// is only driven by the retention worker.
type LocationRetention interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
