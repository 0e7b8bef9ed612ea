package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/reconcile"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// ProjectKPISummary is the per-activity comparison of a project and its roll-up
type ProjectKPISummary struct {
	ProjectCode string                   `json:"projectCode"`
	Summary     reconcile.ProjectSummary `json:"summary"`
	Activities  []reconcile.Comparison   `json:"activities"`
	// UnmatchedRecords counts KPI records that correlate to no BOQ activity
	UnmatchedRecords int `json:"unmatchedRecords"`
}

// KPIService handles business logic for KPI records
type KPIService struct {
	kpiRepo     *repository.KPIRecordRepository
	boqRepo     *repository.BOQActivityRepository
	projectRepo *repository.ProjectRepository
	kpiConfig   config.KPIConfig
	logger      *zap.Logger
}

// NewKPIService creates a new KPIService
func NewKPIService(
	kpiRepo *repository.KPIRecordRepository,
	boqRepo *repository.BOQActivityRepository,
	projectRepo *repository.ProjectRepository,
	kpiConfig config.KPIConfig,
	logger *zap.Logger,
) *KPIService {
	return &KPIService{
		kpiRepo:     kpiRepo,
		boqRepo:     boqRepo,
		projectRepo: projectRepo,
		kpiConfig:   kpiConfig,
		logger:      logger,
	}
}

// Create stores a KPI record. Planned records must correlate to a BOQ activity and
// are checked against its ceiling; with enforcement off an overrun is stored and
// reported as a warning.
func (s *KPIService) Create(ctx context.Context, req *domain.CreateKPIRecordRequest) (*domain.CreateKPIRecordResponse, error) {
	if req.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	record := domain.KPIRecord{
		ProjectFullCode: req.ProjectFullCode,
		ActivityName:    strings.TrimSpace(req.ActivityName),
		Section:         strings.TrimSpace(req.Section),
		Quantity:        req.Quantity,
		InputType:       req.InputType,
		Source:          domain.KPISourceManual,
		RecordedBy:      actorID(ctx),
	}
	var err error
	if record.ActivityDate, err = mapper.ParseDate(req.ActivityDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if record.ActualDate, err = mapper.ParseDate(req.ActualDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if record.TargetDate, err = mapper.ParseDate(req.TargetDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if reconcile.HasConflictingDates(record) {
		return nil, ErrConflictingDates
	}
	if day, ok := reconcile.ActivityDate(record); ok {
		record.ActivityDate = &day
	}

	response := &domain.CreateKPIRecordResponse{}

	if record.InputType == domain.KPIInputPlanned {
		activity, err := s.boqRepo.GetByKey(ctx, record.ProjectFullCode, record.ActivityName, record.Section)
		if err != nil {
			return nil, wrapNotFound(err, fmt.Sprintf("BOQ activity %q in zone %q", record.ActivityName, record.Section))
		}
		records := []domain.KPIRecord{record}
		err = s.kpiRepo.CreatePlanned(ctx, activity.ID, records, func(locked domain.BOQActivity, existing decimal.Decimal) error {
			check := reconcile.Validate(locked, record.Quantity, existing)
			if check.Valid {
				return nil
			}
			if s.kpiConfig.EnforceBOQCeiling {
				return fmt.Errorf("%w: %s", ErrBOQCeilingExceeded, check.Message)
			}
			response.Warning = check.Message
			s.logger.Warn("planned KPI exceeds BOQ total",
				zap.String("project_code", record.ProjectFullCode),
				zap.String("activity", record.ActivityName),
				zap.String("new_total", check.NewTotal.String()))
			return nil
		})
		if errors.Is(err, ErrBOQCeilingExceeded) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create KPI record: %w",
				wrapNotFound(err, fmt.Sprintf("BOQ activity %q in zone %q", record.ActivityName, record.Section)))
		}
		record = records[0]
	} else {
		exists, err := s.projectRepo.ExistsByCode(ctx, record.ProjectFullCode)
		if err != nil {
			return nil, fmt.Errorf("failed to verify project: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, record.ProjectFullCode)
		}
		if err := s.kpiRepo.Create(ctx, &record); err != nil {
			return nil, fmt.Errorf("failed to create KPI record: %w", err)
		}
	}

	response.Record = mapper.ToKPIRecordDTO(&record)
	return response, nil
}

// GetByID retrieves a KPI record
func (s *KPIService) GetByID(ctx context.Context, id uuid.UUID) (*domain.KPIRecordDTO, error) {
	record, err := s.kpiRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "KPI record")
	}
	dto := mapper.ToKPIRecordDTO(record)
	return &dto, nil
}

// List returns a paginated list of KPI records, newest first
func (s *KPIService) List(ctx context.Context, filter repository.KPIFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	records, total, err := s.kpiRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list KPI records: %w", err)
	}

	dtos := make([]domain.KPIRecordDTO, len(records))
	for i := range records {
		dtos[i] = mapper.ToKPIRecordDTO(&records[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Delete removes a KPI record
func (s *KPIService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.kpiRepo.GetByID(ctx, id); err != nil {
		return wrapNotFound(err, "KPI record")
	}
	if err := s.kpiRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete KPI record: %w", err)
	}
	return nil
}

// Validate checks candidate planned quantities against a BOQ activity without
// storing anything. Quantities are validated in order as one batch.
func (s *KPIService) Validate(ctx context.Context, req *domain.ValidateKPIRequest) (*reconcile.BatchResult, error) {
	activity, err := s.boqRepo.GetByID(ctx, req.BOQActivityID)
	if err != nil {
		return nil, wrapNotFound(err, "BOQ activity")
	}
	for _, q := range req.Quantities {
		if q.IsNegative() {
			return nil, fmt.Errorf("%w: quantities must not be negative", ErrInvalidInput)
		}
	}

	existing := decimal.Zero
	if req.ExistingTotal != nil {
		existing = *req.ExistingTotal
	} else {
		existing, err = s.kpiRepo.PlannedTotal(ctx, activity.ProjectCode, activity.ActivityName, activity.Zone)
		if err != nil {
			return nil, fmt.Errorf("failed to read planned total: %w", err)
		}
	}

	result := reconcile.ValidateBatch(*activity, existing, req.Quantities)
	return &result, nil
}

// ProjectSummary compares every BOQ activity of a project with its KPI records
func (s *KPIService) ProjectSummary(ctx context.Context, code string) (*ProjectKPISummary, error) {
	if _, err := s.projectRepo.GetByCode(ctx, code); err != nil {
		return nil, wrapNotFound(err, "project "+code)
	}

	activities, err := s.boqRepo.ListByProject(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list BOQ activities: %w", err)
	}
	records, err := s.kpiRepo.ListByProject(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list KPI records: %w", err)
	}

	type activityKey struct{ name, zone string }
	grouped := make(map[activityKey][]domain.KPIRecord, len(activities))
	for _, r := range records {
		k := activityKey{r.ActivityName, r.Section}
		grouped[k] = append(grouped[k], r)
	}

	summary := &ProjectKPISummary{
		ProjectCode: code,
		Activities:  make([]reconcile.Comparison, 0, len(activities)),
	}
	matched := 0
	for _, a := range activities {
		k := activityKey{a.ActivityName, a.Zone}
		matched += len(grouped[k])
		summary.Activities = append(summary.Activities, reconcile.Compare(a, grouped[k]))
	}
	summary.UnmatchedRecords = len(records) - matched
	summary.Summary = reconcile.Summarize(summary.Activities)
	return summary, nil
}
