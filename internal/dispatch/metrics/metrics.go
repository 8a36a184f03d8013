package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksEnqueuedTotal tracks tasks added per lane
	TasksEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_tasks_enqueued_total",
			Help: "Total number of tasks added to the queue",
		},
		[]string{"category"},
	)

	// TasksClaimedTotal tracks claims per lane
	TasksClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_tasks_claimed_total",
			Help: "Total number of tasks claimed by workers",
		},
		[]string{"category"},
	)

	// TasksCompletedTotal tracks terminal completions per lane
	TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_tasks_completed_total",
			Help: "Total number of tasks completed",
		},
		[]string{"category"},
	)

	// TasksFailedTotal tracks terminal failures per lane
	TasksFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_tasks_failed_total",
			Help: "Total number of tasks that failed terminally",
		},
		[]string{"category"},
	)

	// TasksRequeuedTotal tracks retry-requested re-queues per lane
	TasksRequeuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_tasks_requeued_total",
			Help: "Total number of tasks re-queued for another attempt",
		},
		[]string{"category"},
	)

	// QueueDepth exposes per-lane per-status task counts
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_queue_depth",
			Help: "Number of tasks per lane and status",
		},
		[]string{"category", "status"},
	)

	// TaskDurationSeconds tracks end-to-end processing time per claim
	TaskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_task_duration_seconds",
			Help:    "Wall-clock time spent processing one claim",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// SchedulerTicksTotal tracks fired scheduler ticks per lane
	SchedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_scheduler_ticks_total",
			Help: "Total number of scheduler ticks that enqueued a task",
		},
		[]string{"category"},
	)

	// SchedulerSkippedTicksTotal tracks skipped ticks per lane and reason
	SchedulerSkippedTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_scheduler_skipped_ticks_total",
			Help: "Total number of scheduler ticks skipped",
		},
		[]string{"category", "reason"},
	)

	// DBConnectionPoolUsage exposes pool saturation as a percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
