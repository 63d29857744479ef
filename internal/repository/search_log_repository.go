package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"multirag/internal/model"
)

type SearchLogRepository struct {
	db *gorm.DB
}

func NewSearchLogRepository(db *gorm.DB) *SearchLogRepository {
	return &SearchLogRepository{db: db}
}

func (r *SearchLogRepository) Create(log *model.SearchLog) error {
	if err := r.db.Create(log).Error; err != nil {
		return fmt.Errorf("create search log failed: %w", err)
	}
	return nil
}

func (r *SearchLogRepository) CountSince(since time.Time) (int64, error) {
	var n int64
	if err := r.db.Model(&model.SearchLog{}).Where("created_at >= ?", since).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count search logs failed: %w", err)
	}
	return n, nil
}
