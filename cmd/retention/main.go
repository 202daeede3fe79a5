package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/pkg/config"
	"github.com/samirrijal/murmur/internal/pkg/logging"
	"github.com/samirrijal/murmur/internal/workflows"
)

func main() {
	cfg, err := config.Load("murmur-retention")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if err := ensureSchedule(ctx, c, cfg); err != nil {
		log.Fatalf("retention schedule: %v", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.RetentionWorkflow)
	w.RegisterActivity(&workflows.RetentionActivities{
		Retention: postgres.NewLocationRepo(db),
	})

	slog.Info("retention worker started", "task_queue", cfg.Temporal.TaskQueue, "keep", cfg.Retention.Keep)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule creates the cron schedule that starts RetentionWorkflow.
// An existing schedule is left as is.
func ensureSchedule(ctx context.Context, c client.Client, cfg *config.Config) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: workflows.RetentionScheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cfg.Retention.Schedule},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        workflows.RetentionScheduleID + "-run",
			Workflow:  workflows.RetentionWorkflow,
			TaskQueue: cfg.Temporal.TaskQueue,
			Args: []interface{}{workflows.RetentionInput{
				Keep:    cfg.Retention.Keep,
				MinKeep: cfg.Density.Window,
			}},
		},
	})
	var exists *serviceerror.AlreadyExists
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) || errors.As(err, &exists) {
		slog.Info("retention schedule already exists", "id", workflows.RetentionScheduleID)
		return nil
	}
	return err
}
