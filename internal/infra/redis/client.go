// Package redis provides the optional coordination layer: scheduler
// tick locks and a terminal-task summary cache. The daemon runs fine
// without it; callers treat a nil *Client as "no coordination".
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

// Client wraps Redis operations for queue coordination.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func tickLockKey(category domain.Category, slot int64) string {
	return fmt.Sprintf("scraper:tick:%s:%d", category, slot)
}

func summaryKey(taskID string) string {
	return fmt.Sprintf("scraper:task:%s", taskID)
}

// AcquireTickLock claims one scheduler tick for a category. The slot
// identifies the tick across replicas; whichever process wins the
// SETNX enqueues, the rest skip. The lock expires on its own.
func (c *Client) AcquireTickLock(
	ctx context.Context,
	category domain.Category,
	slot int64,
	ttl time.Duration,
) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, tickLockKey(category, slot), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// TaskSummary is the slice of a terminal task worth keeping after the
// store row is purged.
type TaskSummary struct {
	ID        string            `json:"id"`
	Category  domain.Category   `json:"category"`
	Status    domain.TaskStatus `json:"status"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CacheTaskSummary stores a terminal-task summary with the given TTL.
func (c *Client) CacheTaskSummary(ctx context.Context, summary TaskSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := c.rdb.Set(ctx, summaryKey(summary.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// GetTaskSummary fetches a cached summary. Returns (nil, nil) when no
// summary exists for the id.
func (c *Client) GetTaskSummary(ctx context.Context, taskID string) (*TaskSummary, error) {
	val, err := c.rdb.Get(ctx, summaryKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var summary TaskSummary
	if err := json.Unmarshal(val, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}
