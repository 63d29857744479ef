package model

import "time"

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"

	TaskTypeDocumentIngest = "document_ingest"
)

type Task struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Type         string     `gorm:"size:32;not null" json:"type"`
	Status       string     `gorm:"size:16;not null;index" json:"status"`
	Progress     float64    `gorm:"not null;default:0" json:"progress"`
	Message      string     `gorm:"size:512" json:"message,omitempty"`
	ErrorMessage string     `gorm:"size:512" json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the task can no longer change state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
