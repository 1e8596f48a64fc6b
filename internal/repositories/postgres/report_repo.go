package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

type ReportRepository interface {
	Upsert(ctx context.Context, r *models.InterviewReport) error
	GetByEvaluationID(ctx context.Context, evaluationID string) (*models.InterviewReport, error)
	// List returns the newest reports first; an empty role matches all roles.
	List(ctx context.Context, role string, limit int) ([]models.InterviewReport, error)
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Upsert(ctx context.Context, rep *models.InterviewReport) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "evaluation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"overall_score", "communication_clarity", "technical_depth", "recommendations", "results", "completed_at"}),
		}).
		Create(rep).Error
}

func (r *reportRepo) GetByEvaluationID(ctx context.Context, evaluationID string) (*models.InterviewReport, error) {
	var row models.InterviewReport
	err := r.db.WithContext(ctx).Where("evaluation_id = ?", evaluationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *reportRepo) List(ctx context.Context, role string, limit int) ([]models.InterviewReport, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var rows []models.InterviewReport
	err := q.Order("completed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
