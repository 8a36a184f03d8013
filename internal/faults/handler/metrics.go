package handler

import (
	"sync"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/faults/metrics"
)

// Metrics aggregates process-wide failure history. It is shared by all
// workers, so every update happens under one mutex. It also satisfies
// the retry manager's Recorder.
type Metrics struct {
	mu             sync.Mutex
	totalErrors    int64
	errorsByKind   map[domain.ErrorKind]int64
	retryAttempts  int64
	retrySuccesses int64
	retryFailures  int64
	avgRetryDelay  time.Duration
}

// MetricsSnapshot is a point-in-time copy safe to hand out.
type MetricsSnapshot struct {
	TotalErrors    int64                      `json:"total_errors"`
	ErrorsByKind   map[domain.ErrorKind]int64 `json:"errors_by_kind"`
	RetryAttempts  int64                      `json:"retry_attempts"`
	RetrySuccesses int64                      `json:"retry_successes"`
	RetryFailures  int64                      `json:"retry_failures"`
	AvgRetryDelay  time.Duration              `json:"avg_retry_delay"`
}

// NewMetrics creates empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{errorsByKind: make(map[domain.ErrorKind]int64)}
}

// RecordError counts one handled error of the given kind.
func (m *Metrics) RecordError(kind domain.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalErrors++
	m.errorsByKind[kind]++
}

// RecordRetryAttempt counts one backoff delay and folds it into the
// running average: avg += (delay - avg) / n.
func (m *Metrics) RecordRetryAttempt(kind domain.ErrorKind, delay time.Duration) {
	m.mu.Lock()
	m.retryAttempts++
	m.avgRetryDelay += (delay - m.avgRetryDelay) / time.Duration(m.retryAttempts)
	m.mu.Unlock()

	metrics.RetryAttemptsTotal.WithLabelValues(string(kind)).Inc()
	metrics.RetryDelaySeconds.WithLabelValues(string(kind)).Observe(delay.Seconds())
}

// RecordRetrySuccess counts an operation that recovered after retrying.
func (m *Metrics) RecordRetrySuccess(kind domain.ErrorKind) {
	m.mu.Lock()
	m.retrySuccesses++
	m.mu.Unlock()

	metrics.RetrySuccessesTotal.WithLabelValues(string(kind)).Inc()
}

// RecordRetryFailure counts an operation that exhausted its attempts.
func (m *Metrics) RecordRetryFailure(kind domain.ErrorKind) {
	m.mu.Lock()
	m.retryFailures++
	m.mu.Unlock()

	metrics.RetryFailuresTotal.WithLabelValues(string(kind)).Inc()
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKind := make(map[domain.ErrorKind]int64, len(m.errorsByKind))
	for kind, n := range m.errorsByKind {
		byKind[kind] = n
	}
	return MetricsSnapshot{
		TotalErrors:    m.totalErrors,
		ErrorsByKind:   byKind,
		RetryAttempts:  m.retryAttempts,
		RetrySuccesses: m.retrySuccesses,
		RetryFailures:  m.retryFailures,
		AvgRetryDelay:  m.avgRetryDelay,
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalErrors = 0
	m.errorsByKind = make(map[domain.ErrorKind]int64)
	m.retryAttempts = 0
	m.retrySuccesses = 0
	m.retryFailures = 0
	m.avgRetryDelay = 0
}
