// Package handler is the terminal sink for failures: it classifies,
// records metrics, logs with context and runs recovery hooks. Handle
// never returns an error; reporting a failure must not itself fail.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/classify"
	"github.com/Bandi86/2025-sub008/internal/faults/metrics"
)

// Logger is the logging collaborator. *slog.Logger satisfies it; when
// none is configured the handler falls back to slog.Default().
type Logger interface {
	Error(msg string, args ...any)
}

// RecoveryHook runs after an error of its kind is recorded. Hooks are
// best-effort; their failures are logged and swallowed.
type RecoveryHook func(ctx context.Context, record ErrorRecord) error

// Handler is the error façade shared by all workers.
type Handler struct {
	metrics *Metrics
	log     Logger
	now     func() time.Time

	mu    sync.RWMutex
	hooks map[domain.ErrorKind][]RecoveryHook
}

// New creates a handler. log may be nil.
func New(log Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		metrics: NewMetrics(),
		log:     log,
		now:     time.Now,
		hooks:   make(map[domain.ErrorKind][]RecoveryHook),
	}
}

// SetNowFunc overrides the record timestamp source for tests.
func (h *Handler) SetNowFunc(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Metrics exposes the aggregate counters, which also serve as the retry
// manager's recorder.
func (h *Handler) Metrics() *Metrics {
	return h.metrics
}

// RegisterRecovery adds a hook for kind.
func (h *Handler) RegisterRecovery(kind domain.ErrorKind, hook RecoveryHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[kind] = append(h.hooks[kind], hook)
}

// Handle classifies err, wraps it into an ErrorRecord, updates metrics,
// logs it and runs recovery hooks. A circuit rejection is logged but not
// counted: it signals "not attempted", not "attempted and failed".
func (h *Handler) Handle(ctx context.Context, err error, errCtx Context) {
	if err == nil {
		return
	}
	if errors.Is(err, breaker.ErrCircuitOpen) {
		h.log.Error("call rejected by open breaker",
			"component", errCtx.Component,
			"operation", errCtx.Operation,
		)
		return
	}

	kind, retryable := classify.Describe(err)

	h.mu.RLock()
	now := h.now
	h.mu.RUnlock()

	record := ErrorRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   err.Error(),
		Context:   errCtx,
		Timestamp: now().UTC(),
		Retryable: retryable,
		Stack:     string(debug.Stack()),
	}

	h.metrics.RecordError(kind)
	metrics.ErrorsTotal.WithLabelValues(string(kind), errCtx.Component).Inc()

	h.log.Error(record.Message,
		"kind", string(record.Kind),
		"component", errCtx.Component,
		"operation", errCtx.Operation,
		"task_id", errCtx.TaskID,
		"retryable", record.Retryable,
	)

	h.runHooks(ctx, record)
}

// GetMetrics returns the aggregate counters.
func (h *Handler) GetMetrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// ResetMetrics clears the aggregate counters.
func (h *Handler) ResetMetrics() {
	h.metrics.Reset()
}

func (h *Handler) runHooks(ctx context.Context, record ErrorRecord) {
	h.mu.RLock()
	hooks := h.hooks[record.Kind]
	h.mu.RUnlock()

	for _, hook := range hooks {
		h.runHook(ctx, hook, record)
	}
}

func (h *Handler) runHook(ctx context.Context, hook RecoveryHook, record ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovery hook panicked", "kind", string(record.Kind), "panic", r)
		}
	}()

	if err := hook(ctx, record); err != nil {
		h.log.Error("recovery hook failed", "kind", string(record.Kind), "error", err)
	}
}
