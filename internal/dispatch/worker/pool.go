// Package worker runs the per-lane claim loops. Each pool claims from
// one category and pushes every claim through the breaker and retry
// pipeline before reporting the outcome back to the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/metrics"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/classify"
	"github.com/Bandi86/2025-sub008/internal/faults/handler"
	"github.com/Bandi86/2025-sub008/internal/faults/retry"
)

// Operation performs the scrape for one claimed task.
type Operation func(ctx context.Context, task *domain.Task) error

// Config holds per-lane pool tuning.
type Config struct {
	Concurrency int           `yaml:"concurrency"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Burst       int           `yaml:"burst"`
	IdleSleep   time.Duration `yaml:"idle_sleep"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 2,
		RatePerSec:  1,
		Burst:       1,
		IdleSleep:   2 * time.Second,
		TaskTimeout: 30 * time.Second,
	}
}

// Pool claims and processes tasks for one category.
type Pool struct {
	cfg      Config
	category domain.Category
	queue    *queue.Service
	op       Operation
	breaker  *breaker.Breaker
	retry    *retry.Manager
	handler  *handler.Handler
	limiter  *rate.Limiter
	log      *slog.Logger
	wg       sync.WaitGroup
}

// NewPool creates a pool for the category. The breaker is shared with
// whoever else talks to the same downstream.
func NewPool(
	cfg Config,
	category domain.Category,
	q *queue.Service,
	op Operation,
	br *breaker.Breaker,
	rm *retry.Manager,
	h *handler.Handler,
) *Pool {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = def.RatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = def.IdleSleep
	}

	return &Pool{
		cfg:      cfg,
		category: category,
		queue:    q,
		op:       op,
		breaker:  br,
		retry:    rm,
		handler:  h,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		log:      slog.Default().With("component", "worker", "category", category),
	}
}

// Start launches the claim loops. They run until ctx ends.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("starting worker pool", "concurrency", p.cfg.Concurrency, "rate", p.cfg.RatePerSec)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Stop waits for every loop to exit. Cancel the Start context first.
func (p *Pool) Stop() {
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.log.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		// While the breaker cools down there is no point claiming: the
		// claim would bump the attempt count for work we won't do.
		if !p.breaker.Ready() {
			p.idle(ctx)
			continue
		}

		task, err := p.queue.ClaimNext(ctx, p.category)
		if err != nil {
			p.handler.Handle(ctx, err, handler.Context{
				Component: "worker",
				Operation: "claim",
				Category:  p.category,
			})
			p.idle(ctx)
			continue
		}
		if task == nil {
			p.idle(ctx)
			continue
		}

		log.Debug("task claimed", "task_id", task.ID, "attempt", task.Attempts)
		p.process(ctx, task)
	}
}

func (p *Pool) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.IdleSleep):
	}
}

func (p *Pool) process(ctx context.Context, task *domain.Task) {
	start := time.Now()
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		if p.cfg.TaskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
			defer cancel()
		}
		return p.breaker.Execute(ctx, func(ctx context.Context) error {
			return p.attempt(ctx, task)
		})
	})
	metrics.TaskDurationSeconds.WithLabelValues(string(p.category)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		p.report(ctx, task, domain.OutcomeCompleted, nil)

	case ctx.Err() != nil:
		// Shutdown mid-flight. The claim stays in progress; the stale
		// claim sweep returns it to pending.
		return

	case errors.Is(err, breaker.ErrCircuitOpen):
		// Not attempted. Park it instead of failing it.
		p.report(ctx, task, domain.OutcomeRetryRequested, err)

	default:
		p.handler.Handle(ctx, err, handler.Context{
			Component: "worker",
			Operation: "scrape",
			TaskID:    task.ID,
			Category:  p.category,
		})

		cause := err
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			cause = exhausted.Err
		}
		if _, retryable := classify.Describe(cause); retryable {
			p.report(ctx, task, domain.OutcomeRetryRequested, cause)
		} else {
			p.report(ctx, task, domain.OutcomeFailed, cause)
		}
	}
}

// attempt shields the pipeline from a panicking scrape operation.
func (p *Pool) attempt(ctx context.Context, task *domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scrape panicked: %v", r)
		}
	}()
	return p.op(ctx, task)
}

func (p *Pool) report(ctx context.Context, task *domain.Task, outcome domain.TaskOutcome, cause error) {
	// Results must land even when the claim context ends mid-report.
	ctx = context.WithoutCancel(ctx)
	if err := p.queue.ReportResult(ctx, task.ID, outcome, cause); err != nil {
		p.handler.Handle(ctx, err, handler.Context{
			Component: "worker",
			Operation: "report",
			TaskID:    task.ID,
			Category:  p.category,
		})
	}
}
