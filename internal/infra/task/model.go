// Package task provides async task management for generation jobs.
// It supports task submission, execution, progress tracking, and
// subscriber notification.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the status of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Error represents a task error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Task represents a generation job tracked by the manager.
type Task struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	Status      Status         `json:"status"`
	Progress    int            `json:"progress"`
	Input       map[string]any `json:"input"`
	Output      map[string]any `json:"output,omitempty"`
	Error       *Error         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// IsTerminal checks if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed || t.Status == StatusCancelled
}

// Filter represents task listing options.
type Filter struct {
	Type   *string
	Status *Status
	Limit  int
}

// SubmitRequest represents a task submission request.
type SubmitRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}
