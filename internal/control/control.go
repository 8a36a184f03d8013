package control

import (
	"context"
	"fmt"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

// ResultSink receives scraped payloads
type ResultSink interface {
	// Store persists the body fetched for a task
	Store(ctx context.Context, task *domain.Task, body []byte) error
}

// LogSink implements ResultSink for stdout logging
type LogSink struct{}

func (s *LogSink) Store(ctx context.Context, task *domain.Task, body []byte) error {
	fmt.Printf("[SCRAPED] %s: %s (%d bytes)\n", task.Category, task.Target, len(body))
	return nil
}
