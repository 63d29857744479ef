package repository

import (
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"multirag/internal/model"
)

type EmbeddingRepository struct {
	db *gorm.DB
}

// EmbeddingMatch is one vector-search hit with its cosine distance.
type EmbeddingMatch struct {
	model.Embedding
	Distance float64 `json:"distance"`
}

// SearchFilter narrows a vector search; zero values mean no filtering.
type SearchFilter struct {
	ContentType string
	DocumentIDs []string
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) CreateBatch(embeddings []model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	if err := r.db.Create(&embeddings).Error; err != nil {
		return fmt.Errorf("create embeddings batch failed: %w", err)
	}
	return nil
}

// SearchByUser returns the topK nearest embeddings across the user's
// documents, ordered by cosine distance (<=> is the pgvector cosine operator).
func (r *EmbeddingRepository) SearchByUser(userID uint, query []float32, topK int, filter SearchFilter) ([]EmbeddingMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(query)
	q := r.db.Table("embeddings").
		Select("embeddings.*, embeddings.vector <=> ? AS distance", vec).
		Joins("JOIN documents ON documents.id = embeddings.document_id").
		Where("documents.user_id = ?", userID)

	if filter.ContentType != "" {
		q = q.Where("embeddings.content_type = ?", filter.ContentType)
	}
	if len(filter.DocumentIDs) > 0 {
		q = q.Where("embeddings.document_id IN ?", filter.DocumentIDs)
	}

	var matches []EmbeddingMatch
	if err := q.Order("distance").Limit(topK).Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return matches, nil
}

func (r *EmbeddingRepository) ListPreviewPathsByDocumentID(documentID string) ([]string, error) {
	var paths []string
	err := r.db.Model(&model.Embedding{}).
		Where("document_id = ? AND preview_path <> ''", documentID).
		Pluck("preview_path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("list preview paths failed: %w", err)
	}
	return paths, nil
}

func (r *EmbeddingRepository) DeleteByDocumentID(documentID string) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Embedding{}).Error; err != nil {
		return fmt.Errorf("delete embeddings by document failed: %w", err)
	}
	return nil
}

func (r *EmbeddingRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.Embedding{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count embeddings failed: %w", err)
	}
	return n, nil
}
