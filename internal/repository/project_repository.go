package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// ProjectFilter narrows project listings
type ProjectFilter struct {
	Status *domain.ProjectStatus
	Search string
}

var projectSortFields = map[string]string{
	"code":      "code",
	"name":      "name",
	"status":    "status",
	"startDate": "start_date",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetByCode looks a project up by its business code
func (r *ProjectRepository) GetByCode(ctx context.Context, code string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).First(&project, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ExistsByCode reports whether a project with code exists
func (r *ProjectRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Project{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Project{}, "id = ?", id).Error
}

func (r *ProjectRepository) List(ctx context.Context, filter ProjectFilter, sort SortConfig, page, pageSize int) ([]domain.Project, int64, error) {
	var projects []domain.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Project{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(`(LOWER(code) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := paginate(query, page, pageSize).
		Order(BuildOrderClause(sort, projectSortFields, "updated_at")).
		Find(&projects).Error

	return projects, total, err
}

// ListCodesByStatus returns the codes of all projects in status, ordered by code
func (r *ProjectRepository) ListCodesByStatus(ctx context.Context, status domain.ProjectStatus) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&domain.Project{}).
		Where("status = ?", status).
		Order("code").
		Pluck("code", &codes).Error
	return codes, err
}
