// Package breaker guards downstream operation classes against repeated
// failure. One Breaker per class; in the open state calls are rejected
// synchronously before any I/O happens.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Bandi86/2025-sub008/internal/faults/metrics"
)

// ErrCircuitOpen is returned when a call is rejected without being
// attempted. It is never classified into the error taxonomy.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config defines breaker behavior.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	MonitoringPeriod time.Duration `yaml:"monitoring_period"`
}

// DefaultConfig provides sensible defaults for scrape targets.
var DefaultConfig = Config{
	FailureThreshold: 5,
	ResetTimeout:     60 * time.Second,
	MonitoringPeriod: 10 * time.Minute,
}

// Stats is a point-in-time snapshot of one breaker.
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// Breaker is a three-state trip switch. Transition to half-open is
// lazy: it happens on the next call once ResetTimeout has elapsed, so
// no timer goroutine is needed.
type Breaker struct {
	name string
	cfg  Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	now         func() time.Time
}

// New creates a closed breaker for the named operation class.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig.ResetTimeout
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = DefaultConfig.MonitoringPeriod
	}
	b := &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
	b.publishState()
	return b
}

// publishState mirrors the current state to the prometheus gauge.
// Callers hold the lock or own the breaker exclusively.
func (b *Breaker) publishState() {
	var v float64
	switch b.state {
	case StateHalfOpen:
		v = 1
	case StateOpen:
		v = 2
	}
	metrics.BreakerState.WithLabelValues(b.name).Set(v)
}

// Execute runs op under the breaker. In the open state, before the
// reset timeout elapses, it fails with ErrCircuitOpen and op is never
// invoked. Failures from op always propagate to the caller.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	if err := op(ctx); err != nil {
		b.recordFailure()
		return err
	}

	b.recordSuccess()
	return nil
}

// allow checks admission and performs the lazy open → half-open move.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			metrics.BreakerRejectionsTotal.WithLabelValues(b.name).Inc()
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.state = StateHalfOpen
		b.publishState()
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.publishState()
	}
	b.failures = 0
	b.successes++
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	// A stale failure streak outside the monitoring window starts over.
	if b.state == StateClosed && b.failures > 0 && now.Sub(b.lastFailure) > b.cfg.MonitoringPeriod {
		b.failures = 0
	}

	b.successes = 0
	b.failures++
	b.lastFailure = now

	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.publishState()
	}
}

// GetState returns the current state without mutating it.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ready reports whether a call would currently be admitted. Unlike
// Execute it never moves the breaker to half-open, so pollers can use
// it to hold off work while the breaker cools down.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != StateOpen || b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout
}

// GetStats returns a snapshot of the breaker counters.
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failures,
		SuccessCount:    b.successes,
		LastFailureTime: b.lastFailure,
	}
}

// Trip forces the breaker open, as if the threshold had just been hit.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateOpen
	b.lastFailure = b.now()
	b.publishState()
}

// Reset forces the breaker closed and zeroes all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.lastFailure = time.Time{}
	b.publishState()
}

// SetNowFunc overrides the time source. Tests use this to simulate
// elapsed time deterministically.
func (b *Breaker) SetNowFunc(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
