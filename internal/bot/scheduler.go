package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/pantrybot/internal/bot/tasks"
	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/daily"
	logging "github.com/edgard/pantrybot/internal/logger"
	"github.com/edgard/pantrybot/internal/metrics"
)

// Scheduler manages scheduled tasks using the gocron library.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	clock     clockwork.Clock
	loc       *time.Location
	metrics   *metrics.Metrics

	mu      sync.Mutex // protects start/stop
	running bool
	jobs    map[string]gocron.Job
	daily   map[string]daily.Time
	ctx     context.Context // handed to every task run, cancelled by Stop
	cancel  context.CancelFunc
}

// NewScheduler creates a new scheduler instance using gocron. Daily triggers
// are computed in the configured timezone on clock.
func NewScheduler(
	logger *slog.Logger,
	cfg *config.SchedulerConfig,
	taskMap map[string]tasks.ScheduledTaskFunc,
	clock clockwork.Clock,
	m *metrics.Metrics,
) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg == nil {
		cfg = &config.SchedulerConfig{}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}

	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(loc),
		gocron.WithLogger(logging.NewGocronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
		clock:     clock,
		loc:       loc,
		metrics:   m,
		jobs:      make(map[string]gocron.Job),
		daily:     make(map[string]daily.Time),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// jobDefinition turns a task config into a gocron definition. "at" wins over
// "schedule" when both are set.
func (s *Scheduler) jobDefinition(tc config.TaskConfig) (gocron.JobDefinition, string, error) {
	if tc.At != "" {
		at, err := daily.Parse(tc.At)
		if err != nil {
			return nil, "", err
		}
		def := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(at.Hour), uint(at.Minute), 0)))
		return def, "daily at " + at.String(), nil
	}
	if tc.Schedule == "" {
		return nil, "", fmt.Errorf("task has neither a daily time nor a cron schedule")
	}
	// true = the expression has a leading seconds field
	return gocron.CronJob(tc.Schedule, true), tc.Schedule, nil
}

// runTask wraps one task execution with logging and metrics.
func (s *Scheduler) runTask(name string, fn tasks.ScheduledTaskFunc) {
	s.logger.Info("Running scheduled task", "task_name", name)
	startTime := s.clock.Now()

	if err := fn(s.ctx); err != nil {
		s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
	}

	duration := s.clock.Since(startTime)
	if s.metrics != nil {
		s.metrics.ObserveTask(name, duration)
	}
	s.logger.Info("Finished scheduled task", "task_name", name, "duration", duration)
}

// Start schedules and starts all enabled tasks based on the configuration.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.Debug("Configuring scheduler jobs...")

	if len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	}

	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		def, desc, err := s.jobDefinition(taskConfig)
		if err != nil {
			s.logger.Warn("Scheduled task has an unusable schedule, skipping", "task_name", taskName, "error", err)
			continue
		}

		name := taskName
		job, err := s.scheduler.NewJob(
			def,
			gocron.NewTask(func() { s.runTask(name, taskFunc) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", desc, "error", err)
			continue
		}

		s.jobs[name] = job
		if taskConfig.At != "" {
			// jobDefinition already validated it
			at, _ := daily.Parse(taskConfig.At)
			s.daily[name] = at
		}
		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", desc)
	}

	s.scheduler.Start()
	s.running = true

	for name := range s.jobs {
		if next, ok := s.nextRunLocked(name); ok {
			s.logger.Info("Next task run", "task_name", name, "next_run", next.In(s.loc))
		}
	}
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", len(s.jobs))
	return nil
}

// NextRun reports when a scheduled task fires next, strictly after the
// scheduler clock's current time.
func (s *Scheduler) NextRun(taskName string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunLocked(taskName)
}

func (s *Scheduler) nextRunLocked(taskName string) (time.Time, bool) {
	job, ok := s.jobs[taskName]
	if !ok {
		return time.Time{}, false
	}
	now := s.clock.Now()
	if at, ok := s.daily[taskName]; ok {
		return at.Next(now.In(s.loc)), true
	}

	// gocron keeps the run that just fired at the head until the next one
	// is scheduled.
	runs, err := job.NextRuns(2)
	if err != nil {
		return time.Time{}, false
	}
	for _, next := range runs {
		if next.After(now) {
			return next, true
		}
	}
	return time.Time{}, false
}

// Stop cancels the context of running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	s.cancel()
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
