// Package queue implements the priority task queue: four independent
// lanes, priority-ordered claims, attempt-ceiling enforcement and
// delayed re-queues. State lives in a TaskStore; the queue itself only
// holds lane configuration and the pause switches.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/metrics"
	"github.com/Bandi86/2025-sub008/internal/infra/redis"
	"github.com/Bandi86/2025-sub008/internal/infra/storage"
)

var (
	// ErrUnknownCategory is returned for a category no lane is
	// registered for.
	ErrUnknownCategory = errors.New("unknown task category")

	// ErrQueueClosed is returned by AddTask after Close.
	ErrQueueClosed = errors.New("queue is closed")
)

// Terminal summaries outlive the store row so status lookups keep
// working after cleanup. Failures are kept longer for postmortems.
const (
	completedSummaryTTL = 1 * time.Hour
	failedSummaryTTL    = 24 * time.Hour
)

// LaneConfig fixes per-category queue behaviour.
type LaneConfig struct {
	DefaultPriority int           `yaml:"priority"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// DefaultLanes returns the built-in lane settings. Live matches are
// urgent and stale quickly; discovery is slow-moving background work.
func DefaultLanes() map[domain.Category]LaneConfig {
	return map[domain.Category]LaneConfig{
		domain.CategoryLiveMatch:       {DefaultPriority: 100, MaxAttempts: 2, RetryDelay: 5 * time.Second},
		domain.CategoryUpcomingFixture: {DefaultPriority: 75, MaxAttempts: 3, RetryDelay: 30 * time.Second},
		domain.CategoryHistoricalData:  {DefaultPriority: 50, MaxAttempts: 3, RetryDelay: time.Minute},
		domain.CategoryLeagueDiscovery: {DefaultPriority: 25, MaxAttempts: 2, RetryDelay: 5 * time.Minute},
	}
}

// AddOptions carries optional per-task overrides.
type AddOptions struct {
	// Priority overrides the lane default when non-zero.
	Priority int
	// Target names what to scrape (a URL for the HTTP fetcher).
	Target string
}

// Service is the queue façade used by workers, the scheduler and the
// CLI.
type Service struct {
	store storage.TaskStore
	cache *redis.Client
	log   *slog.Logger

	mu     sync.RWMutex
	lanes  map[domain.Category]LaneConfig
	paused map[domain.Category]bool
	closed bool
	now    func() time.Time
}

// New creates a queue over the given store. cache may be nil; lanes
// falls back to DefaultLanes when nil.
func New(store storage.TaskStore, lanes map[domain.Category]LaneConfig, cache *redis.Client, log *slog.Logger) *Service {
	if lanes == nil {
		lanes = DefaultLanes()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		log:    log.With("component", "queue"),
		lanes:  lanes,
		paused: make(map[domain.Category]bool),
		now:    time.Now,
	}
}

// SetNowFunc overrides the time source for deterministic tests.
func (s *Service) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) lane(category domain.Category) (LaneConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lane, ok := s.lanes[category]
	if !ok {
		return LaneConfig{}, fmt.Errorf("%s: %w", category, ErrUnknownCategory)
	}
	return lane, nil
}

// AddTask persists a new pending task and returns its id.
func (s *Service) AddTask(ctx context.Context, category domain.Category, payload json.RawMessage, opts AddOptions) (string, error) {
	lane, err := s.lane(category)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	closed := s.closed
	now := s.now()
	s.mu.RUnlock()
	if closed {
		return "", ErrQueueClosed
	}

	priority := lane.DefaultPriority
	if opts.Priority != 0 {
		priority = opts.Priority
	}

	task := &domain.Task{
		ID:        uuid.New().String(),
		Category:  category,
		Target:    opts.Target,
		Priority:  priority,
		Status:    domain.TaskPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, task); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	metrics.TasksEnqueuedTotal.WithLabelValues(string(category)).Inc()
	s.log.Debug("task enqueued", "task_id", task.ID, "category", category, "priority", priority)
	return task.ID, nil
}

// ClaimNext hands out the best claimable task in the lane, or nil when
// the lane is empty or paused. Claims are atomic: no task is returned
// to two callers.
func (s *Service) ClaimNext(ctx context.Context, category domain.Category) (*domain.Task, error) {
	if _, err := s.lane(category); err != nil {
		return nil, err
	}

	s.mu.RLock()
	paused := s.paused[category] || s.closed
	s.mu.RUnlock()
	if paused {
		return nil, nil
	}

	task, err := s.store.Claim(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	if task == nil {
		return nil, nil
	}

	metrics.TasksClaimedTotal.WithLabelValues(string(category)).Inc()
	return task, nil
}

// ReportResult finishes one claim. Completed and failed are terminal.
// A retry request re-queues the task while it is under the lane's
// attempt ceiling (delayed by the lane's retry delay when configured)
// and fails it otherwise.
func (s *Service) ReportResult(ctx context.Context, taskID string, outcome domain.TaskOutcome, opErr error) error {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return err
	}

	reason := ""
	if opErr != nil {
		reason = opErr.Error()
	}

	switch outcome {
	case domain.OutcomeCompleted:
		if err := s.store.MarkCompleted(ctx, taskID); err != nil {
			return err
		}
		metrics.TasksCompletedTotal.WithLabelValues(string(task.Category)).Inc()
		s.cacheSummary(ctx, taskID)
		return nil

	case domain.OutcomeFailed:
		return s.fail(ctx, task, reason)

	case domain.OutcomeRetryRequested:
		lane, err := s.lane(task.Category)
		if err != nil {
			return err
		}
		if task.Attempts >= lane.MaxAttempts {
			return s.fail(ctx, task, exhaustedReason(task, reason))
		}

		var notBefore time.Time
		if lane.RetryDelay > 0 {
			s.mu.RLock()
			notBefore = s.now().Add(lane.RetryDelay)
			s.mu.RUnlock()
		}
		if err := s.store.MarkRetryScheduled(ctx, taskID, reason, notBefore); err != nil {
			return err
		}
		metrics.TasksRequeuedTotal.WithLabelValues(string(task.Category)).Inc()
		s.log.Debug("task re-queued", "task_id", taskID, "category", task.Category, "attempts", task.Attempts, "not_before", notBefore)
		return nil

	default:
		return fmt.Errorf("unknown outcome %q for task %s", outcome, taskID)
	}
}

func (s *Service) fail(ctx context.Context, task *domain.Task, reason string) error {
	if err := s.store.MarkFailed(ctx, task.ID, reason); err != nil {
		return err
	}
	metrics.TasksFailedTotal.WithLabelValues(string(task.Category)).Inc()
	s.log.Warn("task failed", "task_id", task.ID, "category", task.Category, "attempts", task.Attempts, "reason", reason)
	s.cacheSummary(ctx, task.ID)
	return nil
}

func exhaustedReason(task *domain.Task, reason string) string {
	if reason == "" {
		reason = task.LastError
	}
	return fmt.Sprintf("retry limit reached after %d attempts: %s", task.Attempts, reason)
}

// cacheSummary best-effort copies the terminal row into redis so
// GetStatus still answers after cleanup purges it.
func (s *Service) cacheSummary(ctx context.Context, taskID string) {
	if s.cache == nil {
		return
	}
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return
	}
	ttl := completedSummaryTTL
	if task.Status == domain.TaskFailed {
		ttl = failedSummaryTTL
	}
	summary := redis.TaskSummary{
		ID:        task.ID,
		Category:  task.Category,
		Status:    task.Status,
		Attempts:  task.Attempts,
		LastError: task.LastError,
		UpdatedAt: task.UpdatedAt,
	}
	if err := s.cache.CacheTaskSummary(ctx, summary, ttl); err != nil {
		s.log.Warn("failed to cache task summary", "task_id", taskID, "error", err)
	}
}

// GetStatus looks up a task by id, falling back to the summary cache
// for rows already purged by cleanup.
func (s *Service) GetStatus(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.Get(ctx, taskID)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, storage.ErrTaskNotFound) || s.cache == nil {
		return nil, err
	}

	summary, cacheErr := s.cache.GetTaskSummary(ctx, taskID)
	if cacheErr != nil || summary == nil {
		return nil, err
	}
	return &domain.Task{
		ID:        summary.ID,
		Category:  summary.Category,
		Status:    summary.Status,
		Attempts:  summary.Attempts,
		LastError: summary.LastError,
		UpdatedAt: summary.UpdatedAt,
	}, nil
}

// GetQueueStats summarizes one lane and refreshes its depth gauges.
func (s *Service) GetQueueStats(ctx context.Context, category domain.Category) (domain.QueueStats, error) {
	if _, err := s.lane(category); err != nil {
		return domain.QueueStats{}, err
	}

	counts, err := s.store.Counts(ctx, category)
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}

	stats := domain.QueueStats{
		Category:   category,
		Waiting:    counts[domain.TaskPending],
		InProgress: counts[domain.TaskInProgress],
		Completed:  counts[domain.TaskCompleted],
		Failed:     counts[domain.TaskFailed],
		Delayed:    counts[domain.TaskRetryScheduled],
	}
	stats.Total = stats.Waiting + stats.InProgress + stats.Completed + stats.Failed + stats.Delayed

	for status, n := range counts {
		metrics.QueueDepth.WithLabelValues(string(category), string(status)).Set(float64(n))
	}
	return stats, nil
}

// RetryFailed re-queues up to limit failed tasks in the lane, oldest
// first, with attempt counts reset.
func (s *Service) RetryFailed(ctx context.Context, category domain.Category, limit int) (int, error) {
	if _, err := s.lane(category); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, nil
	}

	n, err := s.store.RetryFailed(ctx, category, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to retry failed tasks: %w", err)
	}
	if n > 0 {
		metrics.TasksRequeuedTotal.WithLabelValues(string(category)).Add(float64(n))
		s.log.Info("failed tasks re-queued", "category", category, "count", n)
	}
	return n, nil
}

// RecoverStale re-queues in-progress tasks that have not been touched
// for olderThan. It returns claims orphaned by a crash or shutdown to
// the lane; their attempt counts stay spent.
func (s *Service) RecoverStale(ctx context.Context, category domain.Category, olderThan time.Duration) (int, error) {
	if _, err := s.lane(category); err != nil {
		return 0, err
	}

	s.mu.RLock()
	cutoff := s.now().Add(-olderThan)
	s.mu.RUnlock()

	n, err := s.store.ReleaseStale(ctx, category, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale tasks: %w", err)
	}
	if n > 0 {
		metrics.TasksRequeuedTotal.WithLabelValues(string(category)).Add(float64(n))
		s.log.Warn("stale claims released", "category", category, "count", n)
	}
	return n, nil
}

// Cleanup purges terminal tasks older than the grace period.
func (s *Service) Cleanup(ctx context.Context, category domain.Category, gracePeriod time.Duration) (int, error) {
	if _, err := s.lane(category); err != nil {
		return 0, err
	}

	s.mu.RLock()
	cutoff := s.now().Add(-gracePeriod)
	s.mu.RUnlock()

	n, err := s.store.Cleanup(ctx, category, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup tasks: %w", err)
	}
	if n > 0 {
		s.log.Info("terminal tasks purged", "category", category, "count", n)
	}
	return n, nil
}

// Pause stops ClaimNext from handing out tasks in the lane. Contents
// are untouched.
func (s *Service) Pause(category domain.Category) error {
	if _, err := s.lane(category); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused[category] = true
	s.mu.Unlock()
	s.log.Info("lane paused", "category", category)
	return nil
}

// Resume re-enables claims for the lane.
func (s *Service) Resume(category domain.Category) error {
	if _, err := s.lane(category); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.paused, category)
	s.mu.Unlock()
	s.log.Info("lane resumed", "category", category)
	return nil
}

// Categories lists the lanes this queue is configured with.
func (s *Service) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Category
	for _, c := range domain.Categories() {
		if _, ok := s.lanes[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Close stops new work from being added or claimed.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
