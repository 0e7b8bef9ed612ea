package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// BOQFilter narrows BOQ activity listings
type BOQFilter struct {
	ProjectCode string
	Zone        *string
	Search      string
}

var boqSortFields = map[string]string{
	"activityName": "activity_name",
	"zone":         "zone",
	"plannedUnits": "planned_units",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
}

// BOQActivityRepository handles BOQ activity data access
type BOQActivityRepository struct {
	db *gorm.DB
}

func NewBOQActivityRepository(db *gorm.DB) *BOQActivityRepository {
	return &BOQActivityRepository{db: db}
}

func (r *BOQActivityRepository) Create(ctx context.Context, activity *domain.BOQActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *BOQActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BOQActivity, error) {
	var activity domain.BOQActivity
	err := r.db.WithContext(ctx).First(&activity, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetByKey finds the activity a KPI record correlates to. Zone is matched exactly,
// so records without a section belong to the activity without a zone.
func (r *BOQActivityRepository) GetByKey(ctx context.Context, projectCode, activityName, zone string) (*domain.BOQActivity, error) {
	var activity domain.BOQActivity
	err := r.db.WithContext(ctx).
		Where("project_code = ? AND activity_name = ? AND zone = ?", projectCode, activityName, zone).
		First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// ExistsByKey reports whether another activity already uses the key; exclude may be uuid.Nil
func (r *BOQActivityRepository) ExistsByKey(ctx context.Context, projectCode, activityName, zone string, exclude uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.BOQActivity{}).
		Where("project_code = ? AND activity_name = ? AND zone = ?", projectCode, activityName, zone)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *BOQActivityRepository) Update(ctx context.Context, activity *domain.BOQActivity) error {
	return r.db.WithContext(ctx).Save(activity).Error
}

func (r *BOQActivityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.BOQActivity{}, "id = ?", id).Error
}

func (r *BOQActivityRepository) List(ctx context.Context, filter BOQFilter, sort SortConfig, page, pageSize int) ([]domain.BOQActivity, int64, error) {
	var activities []domain.BOQActivity
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.BOQActivity{})
	if filter.ProjectCode != "" {
		query = query.Where("project_code = ?", filter.ProjectCode)
	}
	if filter.Zone != nil {
		query = query.Where("zone = ?", *filter.Zone)
	}
	if filter.Search != "" {
		query = query.Where(`LOWER(activity_name) LIKE ? ESCAPE '\'`, likePattern(filter.Search))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := paginate(query, page, pageSize).
		Order(BuildOrderClause(sort, boqSortFields, "activity_name")).
		Find(&activities).Error

	return activities, total, err
}

// ListByProject returns every activity of a project ordered by zone and name
func (r *BOQActivityRepository) ListByProject(ctx context.Context, projectCode string) ([]domain.BOQActivity, error) {
	var activities []domain.BOQActivity
	err := r.db.WithContext(ctx).
		Where("project_code = ?", projectCode).
		Order("zone, activity_name").
		Find(&activities).Error
	return activities, err
}

// CountByProject counts the activities of a project
func (r *BOQActivityRepository) CountByProject(ctx context.Context, projectCode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BOQActivity{}).
		Where("project_code = ?", projectCode).
		Count(&count).Error
	return count, err
}
