// Package health aggregates queue, breaker and error state into one
// system status served over HTTP and gRPC.
package health

import (
	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/handler"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// LaneHealth contains health metrics for one queue lane.
type LaneHealth struct {
	Category   domain.Category `json:"category"`
	Status     SystemStatus    `json:"status"`
	Waiting    int             `json:"waiting"`
	InProgress int             `json:"in_progress"`
	Failed     int             `json:"failed"`
	Delayed    int             `json:"delayed"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus                   `json:"system_status"`
	Lanes        map[domain.Category]LaneHealth `json:"lanes"`
	Breakers     map[string]breaker.Stats       `json:"breakers"`
	Errors       handler.MetricsSnapshot        `json:"errors"`
}
