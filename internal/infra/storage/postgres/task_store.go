package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/infra/storage"
)

// TaskStore implements storage.TaskStore on PostgreSQL.
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a PostgreSQL task store.
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

type taskRow struct {
	ID            string         `db:"id"`
	Category      string         `db:"category"`
	Target        string         `db:"target"`
	Priority      int            `db:"priority"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	Payload       []byte         `db:"payload"`
	LastError     string         `db:"last_error"`
	AttemptErrors pq.StringArray `db:"attempt_errors"`
	NotBefore     sql.NullTime   `db:"not_before"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *taskRow) toDomain() *domain.Task {
	task := &domain.Task{
		ID:            r.ID,
		Category:      domain.Category(r.Category),
		Target:        r.Target,
		Priority:      r.Priority,
		Status:        domain.TaskStatus(r.Status),
		Attempts:      r.Attempts,
		Payload:       json.RawMessage(r.Payload),
		LastError:     r.LastError,
		AttemptErrors: []string(r.AttemptErrors),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.NotBefore.Valid {
		task.NotBefore = r.NotBefore.Time
	}
	return task
}

const taskColumns = `id, category, target, priority, status, attempts, payload, last_error, attempt_errors, not_before, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, category, target, priority, status, attempts, payload, attempt_errors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '{}', $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		string(task.Category),
		task.Target,
		task.Priority,
		string(task.Status),
		task.Attempts,
		[]byte(task.Payload),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return row.toDomain(), nil
}

// Claim relies on FOR UPDATE SKIP LOCKED so concurrent workers never
// take the same row.
func (s *TaskStore) Claim(ctx context.Context, category domain.Category) (*domain.Task, error) {
	query := `
		UPDATE tasks
		SET status = 'in_progress', attempts = attempts + 1, not_before = NULL, updated_at = NOW()
		WHERE id = (
			SELECT id FROM tasks
			WHERE category = $1
			  AND (status = 'pending' OR (status = 'retry_scheduled' AND not_before <= NOW()))
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	var row taskRow
	err := s.db.GetContext(ctx, &row, query, string(category))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return row.toDomain(), nil
}

func (s *TaskStore) MarkCompleted(ctx context.Context, id string) error {
	query := `UPDATE tasks SET status = 'completed', updated_at = NOW() WHERE id = $1 AND status = 'in_progress'`
	return s.exec(ctx, query, id)
}

func (s *TaskStore) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE tasks
		SET status = 'failed',
		    last_error = $2,
		    attempt_errors = CASE WHEN $2 = '' THEN attempt_errors ELSE array_append(attempt_errors, $2) END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	return s.exec(ctx, query, id, reason)
}

func (s *TaskStore) MarkRetryScheduled(ctx context.Context, id string, reason string, notBefore time.Time) error {
	query := `
		UPDATE tasks
		SET status = CASE WHEN $3::timestamptz IS NULL THEN 'pending' ELSE 'retry_scheduled' END,
		    not_before = $3::timestamptz,
		    last_error = CASE WHEN $2 = '' THEN last_error ELSE $2 END,
		    attempt_errors = CASE WHEN $2 = '' THEN attempt_errors ELSE array_append(attempt_errors, $2) END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	var nb any
	if !notBefore.IsZero() {
		nb = notBefore
	}
	return s.exec(ctx, query, id, reason, nb)
}

func (s *TaskStore) RetryFailed(ctx context.Context, category domain.Category, limit int) (int, error) {
	query := `
		UPDATE tasks
		SET status = 'pending', attempts = 0, not_before = NULL, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE category = $1 AND status = 'failed'
			ORDER BY created_at ASC
			LIMIT $2
		)
	`
	res, err := s.db.ExecContext(ctx, query, string(category), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to retry failed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *TaskStore) ReleaseStale(ctx context.Context, category domain.Category, cutoff time.Time) (int, error) {
	query := `
		UPDATE tasks
		SET status = 'pending', updated_at = NOW()
		WHERE category = $1 AND status = 'in_progress' AND updated_at < $2
	`
	res, err := s.db.ExecContext(ctx, query, string(category), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *TaskStore) Counts(ctx context.Context, category domain.Category) (map[domain.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE category = $1 GROUP BY status`, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *TaskStore) Cleanup(ctx context.Context, category domain.Category, olderThan time.Time) (int, error) {
	query := `
		DELETE FROM tasks
		WHERE category = $1 AND status IN ('completed', 'failed') AND updated_at < $2
	`
	res, err := s.db.ExecContext(ctx, query, string(category), olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup tasks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *TaskStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrTaskNotFound
	}
	return nil
}
