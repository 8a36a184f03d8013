package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/Bandi86/2025-sub008/internal/control"
	coreconfig "github.com/Bandi86/2025-sub008/internal/core/config"
	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/dispatch/worker"
)

func TestGracefulShutdown(t *testing.T) {
	// Memory storage, a schedule with nothing reachable behind it. Enough
	// to start every component without external services.
	cfg := control.Config{
		Port: 0,
		Lanes: []coreconfig.LaneConfig{
			{
				Category: domain.CategoryLeagueDiscovery,
				Interval: time.Second,
				Target:   "http://localhost:1/leagues",
				Queue: queue.LaneConfig{
					DefaultPriority: 25,
					MaxAttempts:     2,
					RetryDelay:      time.Second,
				},
				Workers: worker.Config{
					Concurrency: 1,
					RatePerSec:  10,
					Burst:       1,
					IdleSleep:   50 * time.Millisecond,
				},
			},
		},
	}

	pipeline, err := control.NewPipeline(cfg)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	startError := make(chan error, 1)
	go func() {
		startError <- pipeline.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(2 * time.Second)

	// Trigger shutdown
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	err = pipeline.Stop(stopCtx)
	if err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	select {
	case err := <-startError:
		if err != nil && err != context.Canceled {
			t.Errorf("Pipeline.Start returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Error("Pipeline.Start did not return within 10s of Stop")
	}
}
