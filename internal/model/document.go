package model

import "time"

const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusProcessed  = "processed"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Filename    string    `gorm:"size:256;not null" json:"filename"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	ContentType string    `gorm:"size:64;not null" json:"content_type"`
	Status      string    `gorm:"size:16;not null;index" json:"status"`
	StoragePath string    `gorm:"size:512;not null" json:"-"`
	PageCount   int       `json:"page_count"`
	TextChunks  int       `json:"text_chunks"`
	ImageChunks int       `json:"image_chunks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
