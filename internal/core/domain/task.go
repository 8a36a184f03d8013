package domain

import (
	"encoding/json"
	"time"
)

// Task represents one unit of scraping work flowing through the queue.
type Task struct {
	ID            string          `json:"id"`
	Category      Category        `json:"category"`
	Target        string          `json:"target"`
	Priority      int             `json:"priority"`
	Status        TaskStatus      `json:"status"`
	Attempts      int             `json:"attempts"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	AttemptErrors []string        `json:"attempt_errors,omitempty"`
	NotBefore     time.Time       `json:"not_before,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type TaskStatus string

const (
	TaskPending        TaskStatus = "pending"
	TaskInProgress     TaskStatus = "in_progress"
	TaskCompleted      TaskStatus = "completed"
	TaskFailed         TaskStatus = "failed"
	TaskRetryScheduled TaskStatus = "retry_scheduled"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskOutcome is what a worker reports back after processing a claim.
type TaskOutcome string

const (
	OutcomeCompleted      TaskOutcome = "completed"
	OutcomeFailed         TaskOutcome = "failed"
	OutcomeRetryRequested TaskOutcome = "retry_requested"
)

// QueueStats summarizes one lane.
type QueueStats struct {
	Category   Category `json:"category"`
	Waiting    int      `json:"waiting"`
	InProgress int      `json:"in_progress"`
	Completed  int      `json:"completed"`
	Failed     int      `json:"failed"`
	Delayed    int      `json:"delayed"`
	Total      int      `json:"total"`
}
