// Package storage defines the persistence contract for task records.
// Implementations live in memory/ and postgres/.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

var (
	// ErrTaskNotFound is returned when an id doesn't exist or the task
	// is not in the state the operation requires.
	ErrTaskNotFound = errors.New("task not found")
)

// TaskStore persists tasks for the queue. Query surface is the minimum
// the queue needs: write-by-id plus claim/count/sweep by category.
type TaskStore interface {
	// Create persists a new task with the fields it carries.
	Create(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by id.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// Claim atomically takes the best claimable task in the lane:
	// highest priority first, earliest creation time among equals,
	// considering pending tasks and retry-scheduled tasks whose
	// not-before has passed. The claimed task is marked in-progress
	// with its attempt count incremented. Returns (nil, nil) when the
	// lane has nothing claimable. Two concurrent calls never return
	// the same task.
	Claim(ctx context.Context, category domain.Category) (*domain.Task, error)

	// MarkCompleted moves an in-progress task to completed.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed moves an in-progress task to failed, recording reason.
	MarkFailed(ctx context.Context, id string, reason string) error

	// MarkRetryScheduled moves an in-progress task back to the lane.
	// A zero notBefore re-queues it as pending; otherwise it parks in
	// retry-scheduled until notBefore passes.
	MarkRetryScheduled(ctx context.Context, id string, reason string, notBefore time.Time) error

	// RetryFailed re-queues up to limit failed tasks, oldest first,
	// resetting their attempt counts. Returns how many were re-queued.
	RetryFailed(ctx context.Context, category domain.Category, limit int) (int, error)

	// ReleaseStale re-queues in-progress tasks last touched before
	// cutoff. Attempt counts are kept; the claim already happened.
	// Returns how many were released.
	ReleaseStale(ctx context.Context, category domain.Category, cutoff time.Time) (int, error)

	// Counts returns per-status task counts for the lane.
	Counts(ctx context.Context, category domain.Category) (map[domain.TaskStatus]int, error)

	// Cleanup deletes terminal tasks last touched before olderThan.
	// Returns how many were purged.
	Cleanup(ctx context.Context, category domain.Category, olderThan time.Time) (int, error)
}
