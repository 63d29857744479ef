package app

import (
	"context"
	"time"

	"multirag/internal/model"
	"multirag/internal/repository"
)

// Consumer-side views of the persistence and provider layers. The concrete
// repository and ai types satisfy these; services depend on the interfaces so
// behavior around failure paths stays testable.

type DocumentStore interface {
	Create(doc *model.Document) error
	GetByID(id string) (*model.Document, error)
	GetByIDAndUserID(id string, userID uint) (*model.Document, error)
	ListByUserID(userID uint) ([]model.Document, error)
	Update(doc *model.Document) error
	DeleteByIDAndUserID(id string, userID uint) error
}

type TaskStore interface {
	Create(task *model.Task) error
	GetByID(id string) (*model.Task, error)
	GetByIDAndUserID(id string, userID uint) (*model.Task, error)
	ListByUserID(userID uint, limit int) ([]model.Task, error)
	Update(task *model.Task) error
	DeleteTerminalBefore(cutoff time.Time) (int64, error)
}

type EmbeddingStore interface {
	CreateBatch(embeddings []model.Embedding) error
	SearchByUser(userID uint, query []float32, topK int, filter repository.SearchFilter) ([]repository.EmbeddingMatch, error)
	ListPreviewPathsByDocumentID(documentID string) ([]string, error)
	DeleteByDocumentID(documentID string) error
}

type SearchLogStore interface {
	Create(entry *model.SearchLog) error
}

// Embedder is the embedding provider surface the services need.
type Embedder interface {
	EmbedTexts(ctx context.Context, inputType string, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error)
}

// AnswerGenerator produces grounded answers over retrieved context.
type AnswerGenerator interface {
	AnswerText(ctx context.Context, question, contextBlock string) (string, error)
	AnswerImage(ctx context.Context, question string, image []byte, mimeType string) (string, error)
}
