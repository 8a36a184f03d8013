// Package retry executes operations under per-kind retry policies with
// exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/classify"
)

// Operation is one attemptable unit of work.
type Operation func(ctx context.Context) error

// Recorder receives retry bookkeeping. The error handler's metrics
// implement it; a nil recorder disables recording.
type Recorder interface {
	RecordRetryAttempt(kind domain.ErrorKind, delay time.Duration)
	RecordRetrySuccess(kind domain.ErrorKind)
	RecordRetryFailure(kind domain.ErrorKind)
}

// ExhaustedError marks a failure that survived every allowed attempt.
// The wrapped error is the last attempt's.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err carries the retry-exhausted tag.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Manager runs operations under retry policies selected by error
// classification.
type Manager struct {
	policies map[domain.ErrorKind]Policy
	recorder Recorder
}

// NewManager creates a manager. Nil policies fall back to the defaults;
// recorder may be nil.
func NewManager(policies map[domain.ErrorKind]Policy, recorder Recorder) *Manager {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Manager{policies: policies, recorder: recorder}
}

// PolicyFor resolves the policy for a kind.
func (m *Manager) PolicyFor(kind domain.ErrorKind) Policy {
	if p, ok := m.policies[kind]; ok {
		return p
	}
	return DefaultPolicy
}

// Do runs op, re-resolving the policy from each failure's classification.
// A network failure mid-way therefore retries on the network schedule
// even if the first failure classified differently.
func (m *Manager) Do(ctx context.Context, op Operation) error {
	return m.run(ctx, op, nil)
}

// DoWithPolicy runs op under one fixed policy regardless of how its
// failures classify.
func (m *Manager) DoWithPolicy(ctx context.Context, policy Policy, op Operation) error {
	return m.run(ctx, op, &policy)
}

func (m *Manager) run(ctx context.Context, op Operation, fixed *Policy) error {
	var lastErr error
	var lastKind domain.ErrorKind

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 && m.recorder != nil {
				m.recorder.RecordRetrySuccess(lastKind)
			}
			return nil
		}

		// An open breaker means "not attempted". Surface it untouched so
		// the caller can reschedule instead of burning attempts here.
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return err
		}

		lastErr = err
		kind, retryable := classify.Describe(err)
		lastKind = kind

		policy := m.PolicyFor(kind)
		if fixed != nil {
			policy = *fixed
		}

		if attempt >= policy.MaxAttempts {
			if m.recorder != nil {
				m.recorder.RecordRetryFailure(kind)
			}
			return &ExhaustedError{Attempts: attempt, Err: lastErr}
		}
		if !retryable || (policy.Condition != nil && !policy.Condition(err)) {
			return lastErr
		}

		delay := policy.Delay(attempt)
		if m.recorder != nil {
			m.recorder.RecordRetryAttempt(kind, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
