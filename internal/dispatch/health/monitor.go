package health

import (
	"context"
	"sync"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/handler"
)

// Thresholds tune when backlog sizes flip a lane out of healthy.
type Thresholds struct {
	FailedDegraded  int `yaml:"failed_degraded"`
	FailedCritical  int `yaml:"failed_critical"`
	WaitingDegraded int `yaml:"waiting_degraded"`
}

// DefaultThresholds returns the default backlog thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FailedDegraded:  10,
		FailedCritical:  100,
		WaitingDegraded: 500,
	}
}

// Monitor aggregates health status from the queue, the breakers and
// the error metrics.
type Monitor struct {
	queue      *queue.Service
	breakers   *breaker.Registry
	errs       *handler.Metrics
	thresholds Thresholds

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a new health monitor.
func NewMonitor(q *queue.Service, breakers *breaker.Registry, errs *handler.Metrics, thresholds Thresholds) *Monitor {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Monitor{
		queue:      q,
		breakers:   breakers,
		errs:       errs,
		thresholds: thresholds,
	}
}

// CheckHealth performs a health check across all lanes. Results are
// cached briefly so probes cannot hammer the store.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Lanes != nil {
		return m.lastReport
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Lanes:        make(map[domain.Category]LaneHealth),
		Breakers:     m.breakers.Stats(),
		Errors:       m.errs.Snapshot(),
	}

	for _, category := range m.queue.Categories() {
		lane := LaneHealth{Category: category, Status: StatusHealthy}

		stats, err := m.queue.GetQueueStats(ctx, category)
		if err != nil {
			// A lane we cannot even count is a lane we cannot serve.
			lane.Status = StatusCritical
			report.Lanes[category] = lane
			continue
		}

		lane.Waiting = stats.Waiting
		lane.InProgress = stats.InProgress
		lane.Failed = stats.Failed
		lane.Delayed = stats.Delayed

		if stats.Failed > m.thresholds.FailedCritical {
			lane.Status = StatusCritical
		} else if stats.Failed > m.thresholds.FailedDegraded || stats.Waiting > m.thresholds.WaitingDegraded {
			lane.Status = StatusDegraded
		}

		report.Lanes[category] = lane
	}

	for _, lane := range report.Lanes {
		report.SystemStatus = worse(report.SystemStatus, lane.Status)
	}
	for _, stats := range report.Breakers {
		if stats.State == breaker.StateOpen {
			report.SystemStatus = worse(report.SystemStatus, StatusDegraded)
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
