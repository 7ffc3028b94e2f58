// internal/export/schedule.go
package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/solatis/querykit/internal/log"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler runs named tasks on five-field cron schedules. Owned by the
// serve command; tasks run with the context given to Start.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	logger    log.Logger
	timeout   time.Duration
	ctx       context.Context
}

// NewScheduler creates a stopped scheduler. Each task run is bounded by
// timeout when it is positive.
func NewScheduler(timeout time.Duration, logger log.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		logger:    log.OrNop(logger),
		timeout:   timeout,
		ctx:       context.Background(),
	}, nil
}

// Add registers task under a unique name. Runs of the same job never overlap.
func (s *Scheduler) Add(name, cronExpr string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}
	j, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.run, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", name, err)
	}
	s.jobs[name] = j
	s.logger.Info("scheduled job added", "name", name, "cron", cronExpr)
	return nil
}

// NextRun reports when the named job runs next.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("no scheduled job %s", name)
	}
	return j.NextRun()
}

// RunNow triggers the named job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no scheduled job %s", name)
	}
	return j.RunNow()
}

func (s *Scheduler) run(name string, task Task) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := task(ctx); err != nil {
		s.logger.Error("scheduled job failed", "name", name, "error", err)
		return
	}
	s.logger.Debug("scheduled job finished", "name", name, "duration", time.Since(start))
}

// Start begins running jobs; ctx is passed to every task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.jobs)
	s.mu.Unlock()

	s.scheduler.Start()
	s.logger.Info("scheduler started", "jobs", n)
}

// Stop shuts the scheduler down and waits for running tasks.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
