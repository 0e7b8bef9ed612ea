package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/datawarehouse"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// warehouseRefPrefix marks external refs of records imported from the warehouse
const warehouseRefPrefix = "wh-"

// ActualQuantitySource reads performed quantities from the site diary warehouse
type ActualQuantitySource interface {
	IsEnabled() bool
	GetActualQuantities(ctx context.Context, projectCode string, since time.Time) ([]datawarehouse.ActualQuantity, error)
}

// KPISyncResult reports what one project's sync did
type KPISyncResult struct {
	ProjectCode string `json:"projectCode"`
	Since       string `json:"since"`
	Fetched     int    `json:"fetched"`
	Created     int    `json:"created"`
	Duplicates  int    `json:"duplicates"`
	// Unmatched counts diary lines with no BOQ activity of the same name and zone
	Unmatched int `json:"unmatched"`
	Invalid   int `json:"invalid"`
}

// KPISyncService imports actual quantities from the warehouse as KPI records
type KPISyncService struct {
	source       ActualQuantitySource
	projectRepo  *repository.ProjectRepository
	boqRepo      *repository.BOQActivityRepository
	kpiRepo      *repository.KPIRecordRepository
	auditService *AuditLogService
	lookbackDays int
	logger       *zap.Logger
}

// NewKPISyncService creates a new KPI sync service
func NewKPISyncService(
	source ActualQuantitySource,
	projectRepo *repository.ProjectRepository,
	boqRepo *repository.BOQActivityRepository,
	kpiRepo *repository.KPIRecordRepository,
	auditService *AuditLogService,
	kpiConfig config.KPIConfig,
	logger *zap.Logger,
) *KPISyncService {
	lookback := kpiConfig.SyncLookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	return &KPISyncService{
		source:       source,
		projectRepo:  projectRepo,
		boqRepo:      boqRepo,
		kpiRepo:      kpiRepo,
		auditService: auditService,
		lookbackDays: lookback,
		logger:       logger,
	}
}

// SyncActiveProjects syncs every active project. A failing project is logged and
// counted; the others still run.
func (s *KPISyncService) SyncActiveProjects(ctx context.Context) (synced int, failed int, err error) {
	if s.source == nil || !s.source.IsEnabled() {
		return 0, 0, ErrWarehouseDisabled
	}

	codes, err := s.projectRepo.ListCodesByStatus(ctx, domain.ProjectStatusActive)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list active projects: %w", err)
	}

	for _, code := range codes {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if _, err := s.SyncProject(ctx, code); err != nil {
			failed++
			s.logger.Error("KPI sync failed for project",
				zap.String("project_code", code),
				zap.Error(err))
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// SyncProject imports the project's diary lines dated on or after its newest
// warehouse record, or within the lookback window on the first sync. Lines already
// imported are skipped by their external ref.
func (s *KPISyncService) SyncProject(ctx context.Context, projectCode string) (*KPISyncResult, error) {
	if s.source == nil || !s.source.IsEnabled() {
		return nil, ErrWarehouseDisabled
	}
	if _, err := s.projectRepo.GetByCode(ctx, projectCode); err != nil {
		return nil, wrapNotFound(err, "project "+projectCode)
	}

	since, err := s.syncStart(ctx, projectCode)
	if err != nil {
		return nil, err
	}
	result := &KPISyncResult{ProjectCode: projectCode, Since: since.Format(domain.DateLayout)}

	lines, err := s.source.GetActualQuantities(ctx, projectCode, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch actual quantities: %w", err)
	}
	result.Fetched = len(lines)
	if len(lines) == 0 {
		return result, nil
	}

	refs := make([]string, len(lines))
	for i, l := range lines {
		refs[i] = warehouseRefPrefix + l.EntryID
	}
	existing, err := s.kpiRepo.ExistingExternalRefs(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to check imported entries: %w", err)
	}

	type activityKey struct{ name, zone string }
	known := make(map[activityKey]bool)
	seen := make(map[string]struct{}, len(lines))
	records := make([]domain.KPIRecord, 0, len(lines))

	for i, l := range lines {
		ref := refs[i]
		if _, dup := existing[ref]; dup {
			result.Duplicates++
			continue
		}
		if _, dup := seen[ref]; dup {
			result.Duplicates++
			continue
		}
		if l.EntryID == "" || l.Quantity.IsNegative() {
			result.Invalid++
			continue
		}

		key := activityKey{l.ActivityName, l.Section}
		matched, ok := known[key]
		if !ok {
			_, lookupErr := s.boqRepo.GetByKey(ctx, projectCode, l.ActivityName, l.Section)
			if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to match BOQ activity: %w", lookupErr)
			}
			matched = lookupErr == nil
			known[key] = matched
		}
		if !matched {
			result.Unmatched++
			continue
		}

		seen[ref] = struct{}{}
		day := l.EntryDate
		externalRef := ref
		records = append(records, domain.KPIRecord{
			ProjectFullCode: projectCode,
			ActivityName:    l.ActivityName,
			Section:         l.Section,
			Quantity:        l.Quantity,
			InputType:       domain.KPIInputActual,
			ActivityDate:    &day,
			Source:          domain.KPISourceWarehouse,
			ExternalRef:     &externalRef,
			RecordedBy:      auth.SystemUserID,
		})
	}

	if err := s.kpiRepo.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store warehouse KPI records: %w", err)
	}
	result.Created = len(records)

	s.logger.Info("KPI actuals synced from warehouse",
		zap.String("project_code", projectCode),
		zap.String("since", result.Since),
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("invalid", result.Invalid))

	if result.Created > 0 && s.auditService != nil {
		_ = s.auditService.LogImport(ctx, "project", projectCode, result.Created, string(domain.KPISourceWarehouse))
	}
	return result, nil
}

func (s *KPISyncService) syncStart(ctx context.Context, projectCode string) (time.Time, error) {
	latest, err := s.kpiRepo.LatestActivityDate(ctx, projectCode, domain.KPISourceWarehouse)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last sync date: %w", err)
	}
	if latest != nil {
		y, m, d := latest.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	y, m, d := time.Now().UTC().AddDate(0, 0, -s.lookbackDays).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
