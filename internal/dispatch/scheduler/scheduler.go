// Package scheduler turns recurring scrape schedules into queue tasks.
// Each schedule runs its own ticker; a tick enqueues one task unless
// the system is overloaded, the scheduler is paused, or another
// replica already claimed the tick.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/metrics"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/infra/redis"
)

// PayloadBuilder produces the payload and task options for one tick.
// Builders run on every tick so payloads can carry fresh state such as
// the current matchday.
type PayloadBuilder func() (json.RawMessage, queue.AddOptions, error)

// LoadFunc samples system load as a value in [0, 1].
type LoadFunc func() float64

// Config holds scheduler tuning.
type Config struct {
	// LoadThreshold is the load value above which ticks are skipped.
	LoadThreshold float64 `yaml:"load_threshold"`
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{LoadThreshold: 0.85}
}

type job struct {
	id       string
	category domain.Category
	interval time.Duration
	build    PayloadBuilder
	cancel   context.CancelFunc
}

// Scheduler manages recurring enqueue timers on top of the queue.
type Scheduler struct {
	cfg   Config
	queue *queue.Service
	locks *redis.Client
	load  LoadFunc
	log   *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*job
	paused bool
	wg     sync.WaitGroup
}

// New creates a scheduler. locks may be nil (single-process mode) and
// load may be nil to sample the host load average.
func New(cfg Config, q *queue.Service, locks *redis.Client, load LoadFunc, log *slog.Logger) *Scheduler {
	if cfg.LoadThreshold <= 0 {
		cfg.LoadThreshold = DefaultConfig().LoadThreshold
	}
	if load == nil {
		load = SystemLoad
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:   cfg,
		queue: q,
		locks: locks,
		load:  load,
		log:   log.With("component", "scheduler"),
		jobs:  make(map[string]*job),
	}
}

// ScheduleRecurring registers a timer that enqueues one task per
// interval until ctx ends or the schedule is cancelled. Returns the
// schedule id.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, category domain.Category, interval time.Duration, build PayloadBuilder) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("%s: %w", category, queue.ErrUnknownCategory)
	}
	if interval <= 0 {
		return "", fmt.Errorf("invalid schedule interval %v", interval)
	}
	if build == nil {
		return "", fmt.Errorf("schedule for %s has no payload builder", category)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{
		id:       uuid.New().String(),
		category: category,
		interval: interval,
		build:    build,
		cancel:   cancel,
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(jobCtx, j)

	s.log.Info("schedule registered", "schedule_id", j.id, "category", category, "interval", interval)
	return j.id, nil
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.jobs, j.id)
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j *job) {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		return
	}

	if load := s.load(); load > s.cfg.LoadThreshold {
		s.log.Warn("tick skipped, system overloaded",
			"category", j.category, "load", load, "threshold", s.cfg.LoadThreshold)
		metrics.SchedulerSkippedTicksTotal.WithLabelValues(string(j.category), "load").Inc()
		return
	}

	if s.locks != nil {
		slot := time.Now().UnixNano() / int64(j.interval)
		ok, err := s.locks.AcquireTickLock(ctx, j.category, slot, j.interval)
		if err != nil {
			// Enqueueing twice beats not enqueueing at all.
			s.log.Warn("tick lock unavailable, enqueuing anyway", "category", j.category, "error", err)
		} else if !ok {
			metrics.SchedulerSkippedTicksTotal.WithLabelValues(string(j.category), "lock").Inc()
			return
		}
	}

	payload, opts, err := j.build()
	if err != nil {
		s.log.Error("payload builder failed", "schedule_id", j.id, "category", j.category, "error", err)
		metrics.SchedulerSkippedTicksTotal.WithLabelValues(string(j.category), "build").Inc()
		return
	}

	taskID, err := s.queue.AddTask(ctx, j.category, payload, opts)
	if err != nil {
		s.log.Error("failed to enqueue scheduled task", "schedule_id", j.id, "category", j.category, "error", err)
		return
	}
	metrics.SchedulerTicksTotal.WithLabelValues(string(j.category)).Inc()
	s.log.Debug("scheduled task enqueued", "schedule_id", j.id, "task_id", taskID, "category", j.category)
}

// Cancel stops one schedule. Queued tasks are unaffected.
func (s *Scheduler) Cancel(scheduleID string) error {
	s.mu.Lock()
	j, ok := s.jobs[scheduleID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown schedule %s", scheduleID)
	}
	j.cancel()
	s.log.Info("schedule cancelled", "schedule_id", scheduleID, "category", j.category)
	return nil
}

// PauseAll suppresses ticks for every schedule. Timers keep running so
// ResumeAll picks up at the next interval boundary.
func (s *Scheduler) PauseAll() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.log.Info("all schedules paused")
}

// ResumeAll re-enables ticks.
func (s *Scheduler) ResumeAll() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.log.Info("all schedules resumed")
}

// Stop cancels every schedule and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, j := range s.jobs {
		j.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
