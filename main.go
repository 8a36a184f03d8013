package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/dispatch/worker"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/handler"
	"github.com/Bandi86/2025-sub008/internal/faults/retry"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/memory"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// 1. Set up the fault-handling stack
	errs := handler.New(nil)
	retryMgr := retry.NewManager(nil, errs.Metrics())
	br := breaker.New("demo-site", breaker.Config{
		FailureThreshold: 3,
		ResetTimeout:     2 * time.Second,
	})

	// 2. Create an in-memory queue with the default lanes
	q := queue.New(memory.NewTaskStore(), nil, nil, slog.Default())

	// 3. A simulated scrape: each task times out once before succeeding,
	// and one page is broken for good.
	var mu sync.Mutex
	attempts := make(map[string]int)
	op := func(ctx context.Context, task *domain.Task) error {
		if strings.HasSuffix(task.Target, "/match/5") {
			return fmt.Errorf("validation failed: missing home team for %s", task.Target)
		}

		mu.Lock()
		attempts[task.ID]++
		n := attempts[task.ID]
		mu.Unlock()

		if n == 1 {
			return fmt.Errorf("fetch %s: i/o timeout", task.Target)
		}
		return nil
	}

	// 4. Enqueue work
	for i := 0; i < 5; i++ {
		target := fmt.Sprintf("https://demo.example/match/%d", i+1)
		id, err := q.AddTask(ctx, domain.CategoryLiveMatch, []byte(`{}`), queue.AddOptions{Target: target})
		if err != nil {
			log.Fatalf("enqueue failed: %v", err)
		}
		fmt.Printf("Enqueued %s -> %s\n", target, id)
	}

	// 5. Run a worker pool over the lane
	pool := worker.NewPool(worker.Config{
		Concurrency: 2,
		RatePerSec:  50,
		Burst:       5,
		IdleSleep:   20 * time.Millisecond,
	}, domain.CategoryLiveMatch, q, op, br, retryMgr, errs)

	pool.Start(ctx)

	// 6. Wait for the lane to drain
	for {
		stats, err := q.GetQueueStats(ctx, domain.CategoryLiveMatch)
		if err != nil {
			log.Fatalf("stats failed: %v", err)
		}
		if stats.Completed+stats.Failed == stats.Total {
			break
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	pool.Stop()

	// 7. Show lane stats
	fmt.Println("\n=== Lane Stats ===")
	stats, _ := q.GetQueueStats(context.Background(), domain.CategoryLiveMatch)
	fmt.Printf("completed: %d, failed: %d, total: %d\n", stats.Completed, stats.Failed, stats.Total)

	// 8. Show breaker state
	fmt.Println("\n=== Breaker ===")
	bs := br.GetStats()
	fmt.Printf("%s: state=%s failures=%d successes=%d\n", bs.Name, bs.State, bs.FailureCount, bs.SuccessCount)

	// 9. Show error metrics
	fmt.Println("\n=== Error Metrics ===")
	snap := errs.GetMetrics()
	fmt.Printf("handled errors: %d\n", snap.TotalErrors)
	for kind, n := range snap.ErrorsByKind {
		fmt.Printf("  %s: %d\n", kind, n)
	}
	fmt.Printf("retries: %d attempts, %d recovered, %d exhausted, avg delay %v\n",
		snap.RetryAttempts, snap.RetrySuccesses, snap.RetryFailures, snap.AvgRetryDelay.Round(time.Millisecond))
}
