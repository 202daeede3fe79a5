package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RetentionScheduleID is the Temporal schedule that starts RetentionWorkflow.
const RetentionScheduleID = "murmur-retention"

// ErrKeepTooShort rejects a retention period that would eat into the density window.
var ErrKeepTooShort = errors.New("retention period shorter than the density window")

// RetentionInput is the input for the retention workflow.
type RetentionInput struct {
	// Keep is how long pings stay in the location log.
	Keep time.Duration
	// MinKeep is the density window; Keep below it is refused.
	MinKeep time.Duration
}

// RetentionResult reports one retention run.
type RetentionResult struct {
	Cutoff time.Time
	Pruned int64
}

// RetentionWorkflow deletes pings older than input.Keep. Pings inside the
// density window are never touched, so counts are unaffected.
func RetentionWorkflow(ctx workflow.Context, input RetentionInput) (RetentionResult, error) {
	logger := workflow.GetLogger(ctx)

	if input.Keep <= 0 || input.Keep < input.MinKeep {
		return RetentionResult{}, temporal.NewNonRetryableApplicationError(
			"invalid retention period", "InvalidInput", ErrKeepTooShort)
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	cutoff := workflow.Now(ctx).UTC().Add(-input.Keep)
	logger.Info("Starting retention run", "cutoff", cutoff)

	var a *RetentionActivities
	var pruned int64
	if err := workflow.ExecuteActivity(ctx, a.PruneBefore, cutoff).Get(ctx, &pruned); err != nil {
		return RetentionResult{}, err
	}

	logger.Info("Retention run finished", "pruned", pruned)
	return RetentionResult{Cutoff: cutoff, Pruned: pruned}, nil
}
