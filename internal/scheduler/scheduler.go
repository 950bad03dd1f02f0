// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

// Option configures a Scheduler.
type Option func(*schedulerConfig)

type schedulerConfig struct {
	log      logger.Logger
	location *time.Location
}

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *schedulerConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithLocation sets the time zone schedules are read in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *schedulerConfig) {
		if loc != nil {
			c.location = loc
		}
	}
}

// New creates a new scheduler. Schedules use the five-field cron format and
// the @every / @hourly descriptors.
func New(opts ...Option) *Scheduler {
	cfg := schedulerConfig{location: time.UTC}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.Get()
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(cfg.location)),
		log:  cfg.log.Named("scheduler"),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(context.Background(), "scheduler started", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info(context.Background(), "scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "*/5 * * * *"   - Every 5 minutes
//   - "@hourly"       - Every hour
//   - "0 9 * * 1-5"   - 9 AM weekdays
//   - "@every 30s"    - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name(), schedule, err)
	}

	s.log.Info(context.Background(), "job registered",
		logger.String("schedule", schedule),
		logger.String("job", job.Name()),
	)
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info(context.Background(), "running job immediately", logger.String("job", job.Name()))
	return s.run(job)
}

func (s *Scheduler) run(job Job) error {
	ctx := context.Background()
	start := time.Now()
	s.log.Debug(ctx, "running job", logger.String("job", job.Name()))

	err := job.Run()
	if err != nil {
		metrics.RecordSchedulerJob(job.Name(), "failed")
		s.log.Error(ctx, "job failed", logger.String("job", job.Name()), logger.Error(err))
		return err
	}
	metrics.RecordSchedulerJob(job.Name(), "ok")
	s.log.Debug(ctx, "job completed", logger.String("job", job.Name()), logger.Duration("took", time.Since(start)))
	return nil
}
