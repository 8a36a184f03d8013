package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsTotal tracks handled errors per classification kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of handled errors",
		},
		[]string{"kind", "component"},
	)

	// RetryAttemptsTotal tracks retry attempts per classification kind
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"kind"},
	)

	// RetrySuccessesTotal tracks operations that recovered after retrying
	RetrySuccessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retry_successes_total",
			Help: "Total number of operations that succeeded after at least one retry",
		},
		[]string{"kind"},
	)

	// RetryFailuresTotal tracks operations that exhausted their attempts
	RetryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retry_failures_total",
			Help: "Total number of operations that exhausted all retry attempts",
		},
		[]string{"kind"},
	)

	// RetryDelaySeconds tracks backoff delays applied between attempts
	RetryDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_retry_delay_seconds",
			Help:    "Backoff delay applied before a retry attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// BreakerState exposes each breaker as 0=closed 1=half_open 2=open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"breaker"},
	)

	// BreakerRejectionsTotal tracks calls rejected by an open breaker
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_breaker_rejections_total",
			Help: "Total number of calls rejected while a breaker was open",
		},
		[]string{"breaker"},
	)
)
