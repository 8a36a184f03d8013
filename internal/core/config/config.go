package config

import (
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/health"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/dispatch/scheduler"
	"github.com/Bandi86/2025-sub008/internal/dispatch/worker"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/retry"
	redisclient "github.com/Bandi86/2025-sub008/internal/infra/redis"
	"github.com/Bandi86/2025-sub008/internal/infra/scrape"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig                      `yaml:"server"`
	Logging   LoggingConfig                     `yaml:"logging"`
	Database  postgres.Config                   `yaml:"database"`
	Redis     redisclient.Config                `yaml:"redis"`
	Scrape    scrape.Config                     `yaml:"scrape"`
	Breaker   breaker.Config                    `yaml:"breaker"`
	Retry     map[domain.ErrorKind]retry.Policy `yaml:"retry"`
	Scheduler scheduler.Config                  `yaml:"scheduler"`
	Health    health.Thresholds                 `yaml:"health"`
	Retention RetentionConfig                   `yaml:"retention"`
	Lanes     []LaneConfig                      `yaml:"lanes"`
}

// ServerConfig holds the health endpoint ports.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RetentionConfig controls how long terminal tasks are kept.
type RetentionConfig struct {
	GracePeriod   time.Duration `yaml:"grace_period"`   // 0 = keep forever
	SweepInterval time.Duration `yaml:"sweep_interval"` // 0 = derive from grace period
}

// LaneConfig wires one category end to end: queue behaviour, worker
// pool and the optional recurring schedule.
type LaneConfig struct {
	Category domain.Category  `yaml:"category"`
	Interval time.Duration    `yaml:"interval"` // 0 = no recurring schedule
	Target   string           `yaml:"target"`
	Queue    queue.LaneConfig `yaml:"queue"`
	Workers  worker.Config    `yaml:"workers"`
}
