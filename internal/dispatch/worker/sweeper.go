package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
)

// staleClaimAge is how long an in-progress task may sit untouched
// before the sweep assumes its worker died and re-queues it.
const staleClaimAge = 15 * time.Minute

// Sweeper re-queues orphaned claims and purges terminal tasks past the
// retention grace period.
type Sweeper struct {
	queue    *queue.Service
	grace    time.Duration
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper creates a sweeper. A non-positive grace period disables
// retention purging; stale claim recovery always runs. A non-positive
// interval derives the sweep cadence from the grace period.
func NewSweeper(q *queue.Service, grace, interval time.Duration) *Sweeper {
	return &Sweeper{
		queue:    q,
		grace:    grace,
		interval: interval,
		log:      slog.Default().With("component", "sweeper"),
	}
}

// Start runs the sweep loop until ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		// Sweep at roughly 10% of the grace period, bounded to stay
		// responsive without hammering the store.
		interval = 5 * time.Minute
		if s.grace > 0 {
			interval = min(s.grace/10, 1*time.Hour)
			interval = max(interval, 1*time.Minute)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one recovery and retention pass over every lane.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, category := range s.queue.Categories() {
		if _, err := s.queue.RecoverStale(ctx, category, staleClaimAge); err != nil {
			s.log.Error("stale claim recovery failed", "category", category, "error", err)
		}

		if s.grace <= 0 {
			continue
		}
		if _, err := s.queue.Cleanup(ctx, category, s.grace); err != nil {
			s.log.Error("sweep failed", "category", category, "error", err)
		}
	}
}
