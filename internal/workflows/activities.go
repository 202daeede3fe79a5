package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/murmur/internal/core/ports"
	"github.com/samirrijal/murmur/internal/pkg/metrics"
)

// RetentionActivities holds the activity implementations for the retention workflow.
type RetentionActivities struct {
	Retention ports.LocationRetention
}

// PruneBefore deletes every ping recorded before cutoff and returns how many
// were removed.
func (a *RetentionActivities) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := a.Retention.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune pings before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.RetentionPruned.Add(float64(n))
	slog.InfoContext(ctx, "pings pruned", "cutoff", cutoff, "count", n)
	return n, nil
}
