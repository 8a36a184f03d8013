package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

// Policy defines retry behavior for one classification kind.
type Policy struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	DelayCap      time.Duration `yaml:"delay_cap"`
	JitterRatio   float64       `yaml:"jitter_ratio"`

	// Condition optionally vetoes a retry that policy would otherwise
	// allow. Nil means no extra gate.
	Condition func(err error) bool `yaml:"-"`
}

// DefaultPolicy is the fallback when a kind has no explicit policy.
var DefaultPolicy = Policy{
	MaxAttempts:   3,
	BaseDelay:     1 * time.Second,
	BackoffFactor: 2.0,
	DelayCap:      30 * time.Second,
	JitterRatio:   0.1,
}

// DefaultPolicies maps each kind to its default. Network failures retry
// most aggressively; validation and configuration failures reproduce
// the same bad input, so they get a single attempt.
func DefaultPolicies() map[domain.ErrorKind]Policy {
	return map[domain.ErrorKind]Policy{
		domain.KindNetwork: {
			MaxAttempts:   5,
			BaseDelay:     500 * time.Millisecond,
			BackoffFactor: 2.0,
			DelayCap:      30 * time.Second,
			JitterRatio:   0.1,
		},
		domain.KindScraping: {
			MaxAttempts:   3,
			BaseDelay:     1 * time.Second,
			BackoffFactor: 2.0,
			DelayCap:      30 * time.Second,
			JitterRatio:   0.1,
		},
		domain.KindSystem: {
			MaxAttempts:   2,
			BaseDelay:     2 * time.Second,
			BackoffFactor: 2.0,
			DelayCap:      30 * time.Second,
			JitterRatio:   0.1,
		},
		domain.KindValidation: {
			MaxAttempts: 1,
		},
		domain.KindConfiguration: {
			MaxAttempts: 1,
		},
	}
}

// Delay computes the backoff before the given 1-indexed attempt repeats:
// min(BaseDelay * BackoffFactor^(attempt-1) + jitter, DelayCap), where
// jitter is a random fraction of the computed delay bounded by
// JitterRatio. Jitter spreads simultaneous retries across workers.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	jitter := rand.Float64() * p.JitterRatio * base
	delay := base + jitter
	if limit := float64(p.DelayCap); limit > 0 && delay > limit {
		delay = limit
	}
	return time.Duration(delay)
}
