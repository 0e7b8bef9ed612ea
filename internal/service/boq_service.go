package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/reconcile"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// KPIDraftsResult is the outcome of deriving planned KPI entries from a BOQ activity
type KPIDraftsResult struct {
	Drafts    []reconcile.KPIDraft `json:"drafts"`
	Total     decimal.Decimal      `json:"total"`
	Persisted int                  `json:"persisted"`
	Warning   string               `json:"warning,omitempty"`
}

// BOQService handles business logic for BOQ activities
type BOQService struct {
	boqRepo     *repository.BOQActivityRepository
	projectRepo *repository.ProjectRepository
	kpiRepo     *repository.KPIRecordRepository
	kpiConfig   config.KPIConfig
	logger      *zap.Logger
}

// NewBOQService creates a new BOQService
func NewBOQService(
	boqRepo *repository.BOQActivityRepository,
	projectRepo *repository.ProjectRepository,
	kpiRepo *repository.KPIRecordRepository,
	kpiConfig config.KPIConfig,
	logger *zap.Logger,
) *BOQService {
	return &BOQService{
		boqRepo:     boqRepo,
		projectRepo: projectRepo,
		kpiRepo:     kpiRepo,
		kpiConfig:   kpiConfig,
		logger:      logger,
	}
}

// Create adds a BOQ activity to an existing project
func (s *BOQService) Create(ctx context.Context, req *domain.CreateBOQActivityRequest) (*domain.BOQActivityDTO, error) {
	if req.PlannedUnits.IsNegative() {
		return nil, fmt.Errorf("%w: planned units must not be negative", ErrInvalidInput)
	}

	exists, err := s.projectRepo.ExistsByCode(ctx, req.ProjectCode)
	if err != nil {
		return nil, fmt.Errorf("failed to verify project: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, req.ProjectCode)
	}

	activity := &domain.BOQActivity{
		ProjectCode:      req.ProjectCode,
		ActivityName:     strings.TrimSpace(req.ActivityName),
		Zone:             strings.TrimSpace(req.Zone),
		Unit:             req.Unit,
		PlannedUnits:     req.PlannedUnits,
		CalendarDuration: req.CalendarDuration,
	}
	if err := s.ensureUniqueKey(ctx, activity, uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.boqRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create BOQ activity: %w", err)
	}

	s.logger.Info("BOQ activity created",
		zap.String("boq_activity_id", activity.ID.String()),
		zap.String("project_code", activity.ProjectCode),
		zap.String("activity", activity.ActivityName))

	dto := mapper.ToBOQActivityDTO(activity)
	return &dto, nil
}

// GetByID retrieves a BOQ activity
func (s *BOQService) GetByID(ctx context.Context, id uuid.UUID) (*domain.BOQActivityDTO, error) {
	activity, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToBOQActivityDTO(activity)
	return &dto, nil
}

// List returns a paginated list of BOQ activities
func (s *BOQService) List(ctx context.Context, filter repository.BOQFilter, sort repository.SortConfig, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	activities, total, err := s.boqRepo.List(ctx, filter, sort, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list BOQ activities: %w", err)
	}

	dtos := make([]domain.BOQActivityDTO, len(activities))
	for i := range activities {
		dtos[i] = mapper.ToBOQActivityDTO(&activities[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Update changes a BOQ activity. Renaming or rezoning an activity that already has
// KPI records is refused, since the records correlate by name and zone.
func (s *BOQService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateBOQActivityRequest) (*domain.BOQActivityDTO, error) {
	if req.PlannedUnits.IsNegative() {
		return nil, fmt.Errorf("%w: planned units must not be negative", ErrInvalidInput)
	}

	activity, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.ActivityName)
	zone := strings.TrimSpace(req.Zone)
	if name != activity.ActivityName || zone != activity.Zone {
		records, err := s.kpiRepo.ListForActivity(ctx, activity.ProjectCode, activity.ActivityName, activity.Zone)
		if err != nil {
			return nil, fmt.Errorf("failed to check KPI records: %w", err)
		}
		if len(records) > 0 {
			return nil, fmt.Errorf("%w: activity has %d KPI records and cannot be renamed", ErrConflict, len(records))
		}
		activity.ActivityName = name
		activity.Zone = zone
		if err := s.ensureUniqueKey(ctx, activity, activity.ID); err != nil {
			return nil, err
		}
	}

	activity.Unit = req.Unit
	activity.PlannedUnits = req.PlannedUnits
	activity.CalendarDuration = req.CalendarDuration

	if err := s.boqRepo.Update(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to update BOQ activity: %w", err)
	}

	dto := mapper.ToBOQActivityDTO(activity)
	return &dto, nil
}

// Delete removes a BOQ activity. When KPI records exist the delete fails unless
// cascade is set, in which case the records are removed first.
func (s *BOQService) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	activity, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	records, err := s.kpiRepo.ListForActivity(ctx, activity.ProjectCode, activity.ActivityName, activity.Zone)
	if err != nil {
		return fmt.Errorf("failed to check KPI records: %w", err)
	}
	if len(records) > 0 {
		if !cascade {
			return fmt.Errorf("%w: activity has %d KPI records", ErrConflict, len(records))
		}
		removed, err := s.kpiRepo.DeleteForActivity(ctx, activity.ProjectCode, activity.ActivityName, activity.Zone)
		if err != nil {
			return fmt.Errorf("failed to delete KPI records: %w", err)
		}
		s.logger.Info("deleted KPI records with BOQ activity",
			zap.String("boq_activity_id", id.String()),
			zap.Int64("records", removed))
	}

	if err := s.boqRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete BOQ activity: %w", err)
	}
	return nil
}

// DailyTarget returns the per-day planned quantity. days overrides the configured
// default duration when the activity has no calendar duration of its own.
func (s *BOQService) DailyTarget(ctx context.Context, id uuid.UUID, days int) (*domain.DailyTargetDTO, error) {
	activity, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	fallback := s.fallbackDays(days)
	return &domain.DailyTargetDTO{
		BOQActivityID: activity.ID,
		PlannedUnits:  activity.PlannedUnits,
		DurationDays:  reconcile.ResolveDuration(*activity, fallback),
		DailyTarget:   reconcile.DailyTarget(*activity, fallback),
	}, nil
}

// KPIDrafts derives planned KPI entries from an activity. Without Schedule or
// Persist a single draft carrying the daily target is returned. Persist stores the
// day-by-day schedule, subject to the BOQ ceiling policy.
func (s *BOQService) KPIDrafts(ctx context.Context, id uuid.UUID, req *domain.KPIDraftRequest) (*KPIDraftsResult, error) {
	activity, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	start, err := mapper.ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	days := s.fallbackDays(req.Days)

	if !req.Schedule && !req.Persist {
		draft := reconcile.DraftFromBOQ(*activity, days, start)
		return &KPIDraftsResult{
			Drafts: []reconcile.KPIDraft{draft},
			Total:  draft.Quantity,
		}, nil
	}

	if start == nil && req.Persist {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		start = &today
	}
	var startDay time.Time
	if start != nil {
		startDay = *start
	}

	drafts := reconcile.Schedule(*activity, days, startDay, s.kpiConfig.ScheduleScale)
	result := &KPIDraftsResult{
		Drafts: drafts,
		Total:  reconcile.SumDrafts(drafts),
	}
	if result.Drafts == nil {
		result.Drafts = []reconcile.KPIDraft{}
	}
	if !req.Persist {
		return result, nil
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: activity has nothing to schedule", ErrInvalidInput)
	}

	recordedBy := actorID(ctx)
	records := make([]domain.KPIRecord, len(drafts))
	for i, d := range drafts {
		records[i] = d.Record(recordedBy)
	}
	err = s.kpiRepo.CreatePlanned(ctx, activity.ID, records, func(locked domain.BOQActivity, existing decimal.Decimal) error {
		check := reconcile.Validate(locked, result.Total, existing)
		if check.Valid {
			return nil
		}
		if s.kpiConfig.EnforceBOQCeiling {
			return fmt.Errorf("%w: %s", ErrBOQCeilingExceeded, check.Message)
		}
		result.Warning = check.Message
		return nil
	})
	if errors.Is(err, ErrBOQCeilingExceeded) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store KPI schedule: %w", wrapNotFound(err, "BOQ activity "+id.String()))
	}
	result.Persisted = len(records)

	s.logger.Info("persisted KPI schedule from BOQ",
		zap.String("boq_activity_id", activity.ID.String()),
		zap.Int("records", len(records)),
		zap.String("total", result.Total.String()))

	return result, nil
}

// Comparison compares an activity with its KPI records
func (s *BOQService) Comparison(ctx context.Context, id uuid.UUID) (*reconcile.Comparison, error) {
	activity, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.kpiRepo.ListForActivity(ctx, activity.ProjectCode, activity.ActivityName, activity.Zone)
	if err != nil {
		return nil, fmt.Errorf("failed to list KPI records: %w", err)
	}
	comparison := reconcile.Compare(*activity, records)
	return &comparison, nil
}

func (s *BOQService) get(ctx context.Context, id uuid.UUID) (*domain.BOQActivity, error) {
	activity, err := s.boqRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "BOQ activity")
	}
	return activity, nil
}

func (s *BOQService) ensureUniqueKey(ctx context.Context, activity *domain.BOQActivity, exclude uuid.UUID) error {
	taken, err := s.boqRepo.ExistsByKey(ctx, activity.ProjectCode, activity.ActivityName, activity.Zone, exclude)
	if err != nil {
		return fmt.Errorf("failed to check BOQ activity key: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: activity %q already exists in zone %q of project %s",
			ErrConflict, activity.ActivityName, activity.Zone, activity.ProjectCode)
	}
	return nil
}

func (s *BOQService) fallbackDays(days int) int {
	if days > 0 {
		return days
	}
	return s.kpiConfig.DefaultDurationDays
}
