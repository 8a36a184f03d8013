package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/memory"
)

func newTestScheduler(t *testing.T, load LoadFunc) (*Scheduler, *queue.Service) {
	t.Helper()
	if load == nil {
		// Host load must not leak into tests that are not about the gate.
		load = func() float64 { return 0 }
	}
	q := queue.New(memory.NewTaskStore(), nil, nil, slog.Default())
	s := New(DefaultConfig(), q, nil, load, slog.Default())
	return s, q
}

func fixedPayload() (json.RawMessage, queue.AddOptions, error) {
	return json.RawMessage(`{"page":"scores"}`), queue.AddOptions{Target: "https://example.com/scores"}, nil
}

func waitingCount(t *testing.T, q *queue.Service, category domain.Category) int {
	t.Helper()
	stats, err := q.GetQueueStats(context.Background(), category)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return stats.Waiting
}

func waitForWaiting(t *testing.T, q *queue.Service, category domain.Category, min int) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if waitingCount(t, q, category) >= min {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// ===== Schedule Tests =====

func TestScheduleRecurringEnqueues(t *testing.T) {
	s, q := newTestScheduler(t, nil)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := s.ScheduleRecurring(ctx, domain.CategoryLiveMatch, 10*time.Millisecond, fixedPayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a schedule id")
	}

	if !waitForWaiting(t, q, domain.CategoryLiveMatch, 2) {
		t.Fatal("expected at least 2 enqueued tasks")
	}
}

func TestScheduleRecurringValidation(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	ctx := context.Background()

	if _, err := s.ScheduleRecurring(ctx, "bundesliga", time.Second, fixedPayload); !errors.Is(err, queue.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := s.ScheduleRecurring(ctx, domain.CategoryLiveMatch, 0, fixedPayload); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := s.ScheduleRecurring(ctx, domain.CategoryLiveMatch, time.Second, nil); err == nil {
		t.Error("expected error for nil builder")
	}
}

// ===== Load Gate Tests =====

func TestOverloadSkipsTicks(t *testing.T) {
	s, q := newTestScheduler(t, func() float64 { return 0.95 })
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.ScheduleRecurring(ctx, domain.CategoryLiveMatch, 10*time.Millisecond, fixedPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if n := waitingCount(t, q, domain.CategoryLiveMatch); n != 0 {
		t.Errorf("expected no tasks while overloaded, got %d", n)
	}
}

func TestLoadBelowThresholdEnqueues(t *testing.T) {
	s, q := newTestScheduler(t, func() float64 { return 0.2 })
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.ScheduleRecurring(ctx, domain.CategoryUpcomingFixture, 10*time.Millisecond, fixedPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !waitForWaiting(t, q, domain.CategoryUpcomingFixture, 1) {
		t.Fatal("expected ticks to pass the load gate")
	}
}

// ===== Lifecycle Tests =====

func TestCancelStopsSchedule(t *testing.T) {
	s, q := newTestScheduler(t, nil)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := s.ScheduleRecurring(ctx, domain.CategoryHistoricalData, 10*time.Millisecond, fixedPayload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !waitForWaiting(t, q, domain.CategoryHistoricalData, 1) {
		t.Fatal("expected schedule to enqueue before cancel")
	}

	if err := s.Cancel(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Let any in-flight tick land, then verify the count is stable.
	time.Sleep(30 * time.Millisecond)
	before := waitingCount(t, q, domain.CategoryHistoricalData)
	time.Sleep(50 * time.Millisecond)
	after := waitingCount(t, q, domain.CategoryHistoricalData)
	if after != before {
		t.Errorf("expected no enqueues after cancel, got %d -> %d", before, after)
	}

	if err := s.Cancel(id); err == nil {
		t.Error("expected error cancelling twice")
	}
}

func TestPauseAllSuppressesTicks(t *testing.T) {
	s, q := newTestScheduler(t, nil)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.PauseAll()
	if _, err := s.ScheduleRecurring(ctx, domain.CategoryLeagueDiscovery, 10*time.Millisecond, fixedPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if n := waitingCount(t, q, domain.CategoryLeagueDiscovery); n != 0 {
		t.Errorf("expected no tasks while paused, got %d", n)
	}

	s.ResumeAll()
	if !waitForWaiting(t, q, domain.CategoryLeagueDiscovery, 1) {
		t.Fatal("expected ticks to resume")
	}
}

func TestStopEndsAllSchedules(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id1, _ := s.ScheduleRecurring(ctx, domain.CategoryLiveMatch, 10*time.Millisecond, fixedPayload)
	id2, _ := s.ScheduleRecurring(ctx, domain.CategoryUpcomingFixture, 10*time.Millisecond, fixedPayload)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if err := s.Cancel(id1); err == nil {
		t.Error("expected schedule gone after Stop")
	}
	if err := s.Cancel(id2); err == nil {
		t.Error("expected schedule gone after Stop")
	}
}
