package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"coinsage/internal/logging"
)

// Scheduler enqueues a fresh ingestion cycle on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	worker    *Worker
	interval  time.Duration
}

// NewScheduler creates the periodic cycle scheduler.
func NewScheduler(worker *Worker, interval time.Duration) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: scheduler,
		worker:    worker,
		interval:  interval,
	}, nil
}

// Start registers the recurring job and begins scheduling.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.enqueueCycle(ctx)
		}),
		gocron.WithName("ingest_all_data"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestion job: %w", err)
	}

	s.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for a running trigger.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) enqueueCycle(ctx context.Context) {
	task := Task{
		CycleID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	if err := s.worker.Enqueue(ctx, task); err != nil {
		logging.WithCorrelation(task.CycleID).Error("failed to enqueue ingestion cycle", "error", err)
	}
}
