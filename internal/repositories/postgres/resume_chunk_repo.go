package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/yoockh/yoointerview/internal/models"
)

type ResumeChunkRepository interface {
	InsertBatch(ctx context.Context, rows []models.ResumeChunk) error
	CountByCollection(ctx context.Context, collection string) (int64, error)
	// SearchSimilar orders a collection by cosine distance to embedding.
	SearchSimilar(ctx context.Context, collection string, embedding []float32, limit int) ([]models.ResumeChunk, error)
	DeleteCollection(ctx context.Context, collection string) error
}

type resumeChunkRepo struct {
	db *gorm.DB
}

func NewResumeChunkRepo(db *gorm.DB) ResumeChunkRepository {
	return &resumeChunkRepo{db: db}
}

func (r *resumeChunkRepo) InsertBatch(ctx context.Context, rows []models.ResumeChunk) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

func (r *resumeChunkRepo) CountByCollection(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.ResumeChunk{}).
		Where("collection = ?", collection).
		Count(&n).Error
	return n, err
}

func (r *resumeChunkRepo) SearchSimilar(ctx context.Context, collection string, embedding []float32, limit int) ([]models.ResumeChunk, error) {
	if limit <= 0 {
		limit = 2
	}
	var rows []models.ResumeChunk
	err := r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order(gorm.Expr("embedding <=> ?", pgvector.NewVector(embedding))).
		Order("position ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *resumeChunkRepo) DeleteCollection(ctx context.Context, collection string) error {
	return r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Delete(&models.ResumeChunk{}).Error
}
