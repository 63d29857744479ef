package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"

	// EmbeddingDim is the output dimension of the Cohere embed-v4.0 model.
	EmbeddingDim = 1536
)

// Embedding is one retrievable unit: a text chunk or an embedded page image.
// The vector column is served by the pgvector extension.
type Embedding struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	DocumentID  string          `gorm:"size:36;not null;index" json:"document_id"`
	ChunkIndex  int             `gorm:"not null" json:"chunk_index"`
	ContentType string          `gorm:"size:8;not null;index" json:"content_type"`
	Content     string          `gorm:"type:text" json:"content"`
	Page        int             `json:"page,omitempty"`
	PreviewPath string          `gorm:"size:512" json:"-"`
	Vector      pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (e *Embedding) SetVector(v []float32) {
	e.Vector = pgvector.NewVector(v)
}
