package model

import "time"

type SearchLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Query       string    `gorm:"size:1000;not null" json:"query"`
	TopK        int       `gorm:"not null" json:"top_k"`
	ResultCount int       `gorm:"not null" json:"result_count"`
	Answered    bool      `gorm:"not null" json:"answered"`
	DurationMS  int64     `gorm:"not null" json:"duration_ms"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
