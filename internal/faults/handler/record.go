package handler

import (
	"time"

	"github.com/Bandi86/2025-sub008/internal/core/domain"
)

// Context identifies where a failure happened.
type Context struct {
	Component string            `json:"component"`
	Operation string            `json:"operation"`
	TaskID    string            `json:"task_id,omitempty"`
	Category  domain.Category   `json:"category,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ErrorRecord is the classified, contextualized form of one handled
// failure.
type ErrorRecord struct {
	ID        string           `json:"id"`
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Context   Context          `json:"context"`
	Timestamp time.Time        `json:"timestamp"`
	Retryable bool             `json:"retryable"`
	Stack     string           `json:"stack,omitempty"`
}
