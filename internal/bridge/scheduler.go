package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// TaskFunc is a periodic maintenance task run by the scheduler.
type TaskFunc func(ctx context.Context) error

// Scheduler runs named periodic tasks using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler instance.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
	}, nil
}

// AddTask registers a task to run every interval. Must be called before Start.
func (s *Scheduler) AddTask(name string, interval time.Duration, task TaskFunc) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			s.logger.Debug("Running scheduled task", "task_name", name)
			start := time.Now()
			if taskErr := task(ctx); taskErr != nil {
				s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
			}
			s.logger.Debug("Finished scheduled task", "task_name", name, "duration", time.Since(start))
		}, context.Background()),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}

	s.logger.Info("Scheduled task", "task_name", name, "interval", interval)
	return nil
}

// Start begins the scheduler's internal ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.scheduler.Start()
	s.running = true
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.running = false
	return err
}
