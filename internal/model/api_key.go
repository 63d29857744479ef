package model

import "time"

// APIKey stores only the SHA-256 hash of the issued key; the plaintext is
// returned to the caller once at creation time and never persisted.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	KeyHash    string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Label      string     `gorm:"size:128" json:"label"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
