package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/config"
	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/dispatch/scheduler"
	"github.com/Bandi86/2025-sub008/internal/dispatch/worker"
)

func testLane(category domain.Category, target string) config.LaneConfig {
	return config.LaneConfig{
		Category: category,
		Target:   target,
		Queue: queue.LaneConfig{
			DefaultPriority: 100,
			MaxAttempts:     2,
			RetryDelay:      time.Second,
		},
		Workers: worker.Config{
			Concurrency: 2,
			RatePerSec:  500,
			Burst:       10,
			IdleSleep:   5 * time.Millisecond,
		},
	}
}

func TestPipeline_Lifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>live scores</html>"))
	}))
	defer srv.Close()

	lane := testLane(domain.CategoryLiveMatch, srv.URL)
	lane.Interval = 50 * time.Millisecond

	cfg := Config{
		Port:     0, // Random port
		GRPCPort: 0,
		// Load never exceeds 1, so a threshold of 1 keeps the gate out
		// of the way regardless of how busy the test host is.
		Scheduler: scheduler.Config{LoadThreshold: 1},
		Lanes:     []config.LaneConfig{lane},
	}

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if len(p.pools) != 1 {
		t.Errorf("expected 1 worker pool, got %d", len(p.pools))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The scheduler ticks every 50ms, so a completed scrape should show
	// up well within the deadline.
	deadline := time.Now().Add(3 * time.Second)
	for {
		stats, err := p.Queue().GetQueueStats(ctx, domain.CategoryLiveMatch)
		if err != nil {
			t.Fatalf("GetQueueStats failed: %v", err)
		}
		if stats.Completed >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no task completed before deadline, stats %+v", stats)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// An embedding caller can halt scheduled enqueueing through the
	// scheduler handle while workers keep draining.
	p.Scheduler().PauseAll()
	time.Sleep(150 * time.Millisecond)
	before, err := p.Queue().GetQueueStats(ctx, domain.CategoryLiveMatch)
	if err != nil {
		t.Fatalf("GetQueueStats failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	after, err := p.Queue().GetQueueStats(ctx, domain.CategoryLiveMatch)
	if err != nil {
		t.Fatalf("GetQueueStats failed: %v", err)
	}
	if after.Total != before.Total {
		t.Errorf("expected no new tasks while paused, total went %d -> %d", before.Total, after.Total)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPipeline_MultiLane(t *testing.T) {
	cfg := Config{
		Port: 0,
		Lanes: []config.LaneConfig{
			testLane(domain.CategoryLiveMatch, "http://loc1"),
			testLane(domain.CategoryHistoricalData, "http://loc2"),
		},
	}

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	if len(p.pools) != 2 {
		t.Errorf("expected 2 worker pools, got %d", len(p.pools))
	}
	if p.pools[domain.CategoryLiveMatch] == p.pools[domain.CategoryHistoricalData] {
		t.Error("expected lanes to get separate pools")
	}
}
