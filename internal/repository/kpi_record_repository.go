package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// KPIFilter narrows KPI record listings. From and To bound activity_date inclusively.
type KPIFilter struct {
	ProjectCode  string
	ActivityName string
	Section      *string
	InputType    *domain.KPIInputType
	Source       *domain.KPISource
	From         *time.Time
	To           *time.Time
}

// KPIRecordRepository handles KPI record data access
type KPIRecordRepository struct {
	db *gorm.DB
}

func NewKPIRecordRepository(db *gorm.DB) *KPIRecordRepository {
	return &KPIRecordRepository{db: db}
}

func (r *KPIRecordRepository) Create(ctx context.Context, record *domain.KPIRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// CreateBatch inserts records in one transaction; either all are stored or none
func (r *KPIRecordRepository) CreateBatch(ctx context.Context, records []domain.KPIRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, 100).Error
	})
}

func (r *KPIRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.KPIRecord, error) {
	var record domain.KPIRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *KPIRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.KPIRecord{}, "id = ?", id).Error
}

func (r *KPIRecordRepository) List(ctx context.Context, filter KPIFilter, page, pageSize int) ([]domain.KPIRecord, int64, error) {
	var records []domain.KPIRecord
	var total int64

	query := r.applyFilter(r.db.WithContext(ctx).Model(&domain.KPIRecord{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := paginate(query, page, pageSize).
		Order("activity_date DESC, created_at DESC").
		Find(&records).Error

	return records, total, err
}

// ListForActivity returns every record that correlates to one BOQ activity
func (r *KPIRecordRepository) ListForActivity(ctx context.Context, projectCode, activityName, section string) ([]domain.KPIRecord, error) {
	var records []domain.KPIRecord
	err := r.db.WithContext(ctx).
		Where("project_full_code = ? AND activity_name = ? AND section = ?", projectCode, activityName, section).
		Order("activity_date, created_at").
		Find(&records).Error
	return records, err
}

// ListByProject returns every record of a project
func (r *KPIRecordRepository) ListByProject(ctx context.Context, projectCode string) ([]domain.KPIRecord, error) {
	var records []domain.KPIRecord
	err := r.db.WithContext(ctx).
		Where("project_full_code = ?", projectCode).
		Order("activity_name, section, activity_date").
		Find(&records).Error
	return records, err
}

// PlannedTotal sums the committed planned quantity for one activity. The sum is
// taken in decimal arithmetic rather than in SQL so no driver rounds it.
func (r *KPIRecordRepository) PlannedTotal(ctx context.Context, projectCode, activityName, section string) (decimal.Decimal, error) {
	return plannedTotal(r.db.WithContext(ctx), projectCode, activityName, section)
}

func plannedTotal(db *gorm.DB, projectCode, activityName, section string) (decimal.Decimal, error) {
	var quantities []decimal.Decimal
	err := db.Model(&domain.KPIRecord{}).
		Where("project_full_code = ? AND activity_name = ? AND section = ? AND input_type = ?",
			projectCode, activityName, section, domain.KPIInputPlanned).
		Pluck("quantity", &quantities).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, quantities...), nil
}

// PlannedCheck inspects the locked activity and its committed planned total before
// planned records are inserted. A returned error aborts the insert.
type PlannedCheck func(activity domain.BOQActivity, existingTotal decimal.Decimal) error

// CreatePlanned stores planned records for one BOQ activity. The activity row is
// locked for the transaction so concurrent writers see each other's totals.
func (r *KPIRecordRepository) CreatePlanned(ctx context.Context, activityID uuid.UUID, records []domain.KPIRecord, check PlannedCheck) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity domain.BOQActivity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&activity, "id = ?", activityID).Error
		if err != nil {
			return err
		}

		existing, err := plannedTotal(tx, activity.ProjectCode, activity.ActivityName, activity.Zone)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(activity, existing); err != nil {
				return err
			}
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
}

// ExistingExternalRefs returns the subset of refs that are already stored
func (r *KPIRecordRepository) ExistingExternalRefs(ctx context.Context, refs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(refs))
	if len(refs) == 0 {
		return found, nil
	}
	var stored []string
	err := r.db.WithContext(ctx).Model(&domain.KPIRecord{}).
		Where("external_ref IN ?", refs).
		Pluck("external_ref", &stored).Error
	if err != nil {
		return nil, err
	}
	for _, ref := range stored {
		found[ref] = struct{}{}
	}
	return found, nil
}

// LatestActivityDate returns the newest activity date of a project's records from
// source, or nil when there are none
func (r *KPIRecordRepository) LatestActivityDate(ctx context.Context, projectCode string, source domain.KPISource) (*time.Time, error) {
	var record domain.KPIRecord
	err := r.db.WithContext(ctx).
		Where("project_full_code = ? AND source = ? AND activity_date IS NOT NULL", projectCode, source).
		Order("activity_date DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record.ActivityDate, nil
}

// DeleteForActivity removes every record of an activity, used when the activity is deleted
func (r *KPIRecordRepository) DeleteForActivity(ctx context.Context, projectCode, activityName, section string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("project_full_code = ? AND activity_name = ? AND section = ?", projectCode, activityName, section).
		Delete(&domain.KPIRecord{})
	return result.RowsAffected, result.Error
}

func (r *KPIRecordRepository) applyFilter(query *gorm.DB, filter KPIFilter) *gorm.DB {
	if filter.ProjectCode != "" {
		query = query.Where("project_full_code = ?", filter.ProjectCode)
	}
	if filter.ActivityName != "" {
		query = query.Where("activity_name = ?", filter.ActivityName)
	}
	if filter.Section != nil {
		query = query.Where("section = ?", *filter.Section)
	}
	if filter.InputType != nil {
		query = query.Where("input_type = ?", *filter.InputType)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.From != nil {
		query = query.Where("activity_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("activity_date <= ?", *filter.To)
	}
	return query
}
