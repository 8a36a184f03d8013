package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/infra/storage"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSweepPurgesEveryLane(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewTaskStore()
	store.SetNowFunc(clock.Now)
	q := queue.New(store, nil, nil, slog.Default())
	q.SetNowFunc(clock.Now)
	ctx := context.Background()

	var oldIDs []string
	for _, category := range []domain.Category{domain.CategoryLiveMatch, domain.CategoryHistoricalData} {
		id, err := q.AddTask(ctx, category, nil, queue.AddOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q.ClaimNext(ctx, category)
		q.ReportResult(ctx, id, domain.OutcomeCompleted, nil)
		oldIDs = append(oldIDs, id)
	}

	clock.Advance(48 * time.Hour)

	freshID, _ := q.AddTask(ctx, domain.CategoryLiveMatch, nil, queue.AddOptions{})
	q.ClaimNext(ctx, domain.CategoryLiveMatch)
	q.ReportResult(ctx, freshID, domain.OutcomeCompleted, nil)

	sweeper := NewSweeper(q, 24*time.Hour, 0)
	sweeper.Sweep(ctx)

	for _, id := range oldIDs {
		if _, err := q.GetStatus(ctx, id); !errors.Is(err, storage.ErrTaskNotFound) {
			t.Errorf("expected task %s purged, got %v", id, err)
		}
	}
	if _, err := q.GetStatus(ctx, freshID); err != nil {
		t.Errorf("expected fresh task kept, got %v", err)
	}
}

func TestSweepRecoversStaleClaims(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewTaskStore()
	store.SetNowFunc(clock.Now)
	q := queue.New(store, nil, nil, slog.Default())
	q.SetNowFunc(clock.Now)
	ctx := context.Background()

	id, err := q.AddTask(ctx, domain.CategoryLiveMatch, nil, queue.AddOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.ClaimNext(ctx, domain.CategoryLiveMatch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Sweeping right away must not touch a live claim.
	sweeper := NewSweeper(q, 0, 0)
	sweeper.Sweep(ctx)
	task, err := q.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != domain.TaskInProgress {
		t.Errorf("expected live claim untouched, got %s", task.Status)
	}

	// Once the claim has sat past the stale age, the sweep re-queues it.
	clock.Advance(20 * time.Minute)
	sweeper.Sweep(ctx)
	task, err = q.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != domain.TaskPending {
		t.Errorf("expected stale claim re-queued, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected attempt count kept, got %d", task.Attempts)
	}
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	q := queue.New(memory.NewTaskStore(), nil, nil, slog.Default())
	sweeper := NewSweeper(q, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Start to return once the context ends")
	}
}
