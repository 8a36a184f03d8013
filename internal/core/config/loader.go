package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/faults/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	for _, lane := range cfg.Lanes {
		if !lane.Category.Valid() {
			return nil, fmt.Errorf("unknown lane category %q (known: %v)", lane.Category, domain.Categories())
		}
	}
	for kind := range cfg.Retry {
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown retry kind %q (known: %v)", kind, domain.Kinds())
		}
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given: all
// four lanes with built-in settings and no database, so the in-memory
// store is used.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Retention.GracePeriod == 0 {
		cfg.Retention.GracePeriod = 24 * time.Hour
	}

	laneDefaults := queue.DefaultLanes()
	if len(cfg.Lanes) == 0 {
		for _, category := range domain.Categories() {
			cfg.Lanes = append(cfg.Lanes, LaneConfig{
				Category: category,
				Queue:    laneDefaults[category],
			})
		}
	}
	for i := range cfg.Lanes {
		if cfg.Lanes[i].Queue == (queue.LaneConfig{}) {
			cfg.Lanes[i].Queue = laneDefaults[cfg.Lanes[i].Category]
		}
	}
}

// QueueLanes reshapes the lane list into the queue's config map.
func (c *AppConfig) QueueLanes() map[domain.Category]queue.LaneConfig {
	out := make(map[domain.Category]queue.LaneConfig, len(c.Lanes))
	for _, lane := range c.Lanes {
		out[lane.Category] = lane.Queue
	}
	return out
}

// RetryPolicies merges the configured per-kind overrides over the
// built-in defaults. Zero fields inherit the kind's default, so a lane
// operator can raise max_attempts without restating the backoff. Nil
// when no retry section is configured.
func (c *AppConfig) RetryPolicies() map[domain.ErrorKind]retry.Policy {
	if len(c.Retry) == 0 {
		return nil
	}
	out := retry.DefaultPolicies()
	for kind, p := range c.Retry {
		def, ok := out[kind]
		if !ok {
			def = retry.DefaultPolicy
		}
		if p.MaxAttempts == 0 {
			p.MaxAttempts = def.MaxAttempts
		}
		if p.BaseDelay == 0 {
			p.BaseDelay = def.BaseDelay
		}
		if p.BackoffFactor == 0 {
			p.BackoffFactor = def.BackoffFactor
		}
		if p.DelayCap == 0 {
			p.DelayCap = def.DelayCap
		}
		if p.JitterRatio == 0 {
			p.JitterRatio = def.JitterRatio
		}
		out[kind] = p
	}
	return out
}
