package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// ReportExportRepository stores metadata of generated report files
type ReportExportRepository struct {
	db *gorm.DB
}

func NewReportExportRepository(db *gorm.DB) *ReportExportRepository {
	return &ReportExportRepository{db: db}
}

func (r *ReportExportRepository) Create(ctx context.Context, export *domain.ReportExport) error {
	return r.db.WithContext(ctx).Create(export).Error
}

func (r *ReportExportRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReportExport, error) {
	var export domain.ReportExport
	err := r.db.WithContext(ctx).First(&export, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &export, nil
}

// ListByProject returns a project's exports, newest first
func (r *ReportExportRepository) ListByProject(ctx context.Context, projectCode string, limit int) ([]domain.ReportExport, error) {
	var exports []domain.ReportExport
	_, limit = NormalizePage(1, limit)
	err := r.db.WithContext(ctx).
		Where("project_code = ?", projectCode).
		Order("created_at DESC").
		Limit(limit).
		Find(&exports).Error
	return exports, err
}

func (r *ReportExportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.ReportExport{}, "id = ?", id).Error
}
