// Package memory provides an in-process TaskStore for tests and
// databaseless runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/infra/storage"
)

// TaskStore keeps every task in one mutex-guarded map.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	now   func() time.Time
}

// NewTaskStore creates an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*domain.Task),
		now:   time.Now,
	}
}

// SetNowFunc overrides the time source for deterministic tests.
func (s *TaskStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (s *TaskStore) Claim(ctx context.Context, category domain.Category) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var best *domain.Task
	for _, task := range s.tasks {
		if task.Category != category || !claimable(task, now) {
			continue
		}
		if best == nil || task.Priority > best.Priority ||
			(task.Priority == best.Priority && task.CreatedAt.Before(best.CreatedAt)) {
			best = task
		}
	}
	if best == nil {
		return nil, nil
	}

	best.Status = domain.TaskInProgress
	best.Attempts++
	best.NotBefore = time.Time{}
	best.UpdatedAt = now

	clone := *best
	return &clone, nil
}

func claimable(task *domain.Task, now time.Time) bool {
	switch task.Status {
	case domain.TaskPending:
		return true
	case domain.TaskRetryScheduled:
		return !task.NotBefore.After(now)
	}
	return false
}

func (s *TaskStore) MarkCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskInProgress {
		return storage.ErrTaskNotFound
	}
	task.Status = domain.TaskCompleted
	task.UpdatedAt = s.now()
	return nil
}

func (s *TaskStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskInProgress {
		return storage.ErrTaskNotFound
	}
	task.Status = domain.TaskFailed
	task.LastError = reason
	if reason != "" {
		task.AttemptErrors = append(task.AttemptErrors, reason)
	}
	task.UpdatedAt = s.now()
	return nil
}

func (s *TaskStore) MarkRetryScheduled(ctx context.Context, id string, reason string, notBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskInProgress {
		return storage.ErrTaskNotFound
	}
	if notBefore.IsZero() {
		task.Status = domain.TaskPending
	} else {
		task.Status = domain.TaskRetryScheduled
	}
	task.NotBefore = notBefore
	if reason != "" {
		task.LastError = reason
		task.AttemptErrors = append(task.AttemptErrors, reason)
	}
	task.UpdatedAt = s.now()
	return nil
}

func (s *TaskStore) RetryFailed(ctx context.Context, category domain.Category, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []*domain.Task
	for _, task := range s.tasks {
		if task.Category == category && task.Status == domain.TaskFailed {
			failed = append(failed, task)
		}
	}
	// Oldest first.
	for i := 0; i < len(failed); i++ {
		for j := i + 1; j < len(failed); j++ {
			if failed[j].CreatedAt.Before(failed[i].CreatedAt) {
				failed[i], failed[j] = failed[j], failed[i]
			}
		}
	}

	now := s.now()
	count := 0
	for _, task := range failed {
		if count >= limit {
			break
		}
		task.Status = domain.TaskPending
		task.Attempts = 0
		task.NotBefore = time.Time{}
		task.UpdatedAt = now
		count++
	}
	return count, nil
}

func (s *TaskStore) ReleaseStale(ctx context.Context, category domain.Category, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, task := range s.tasks {
		if task.Category == category && task.Status == domain.TaskInProgress && task.UpdatedAt.Before(cutoff) {
			task.Status = domain.TaskPending
			task.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (s *TaskStore) Counts(ctx context.Context, category domain.Category) (map[domain.TaskStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.TaskStatus]int)
	for _, task := range s.tasks {
		if task.Category == category {
			counts[task.Status]++
		}
	}
	return counts, nil
}

func (s *TaskStore) Cleanup(ctx context.Context, category domain.Category, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, task := range s.tasks {
		if task.Category == category && task.Status.Terminal() && task.UpdatedAt.Before(olderThan) {
			delete(s.tasks, id)
			count++
		}
	}
	return count, nil
}
