package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/reconcile"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/storage"
)

// ReportKindKPISummary is the kind of the per-project KPI summary export
const ReportKindKPISummary = "kpi_summary"

const csvContentType = "text/csv"

var kpiSummaryHeader = []string{
	"activity_name", "zone", "boq_planned", "kpi_total_planned",
	"kpi_total_actual", "variance", "progress_percentage", "status",
}

// ReportService renders reports and keeps them in file storage
type ReportService struct {
	kpiService   *KPIService
	exportRepo   *repository.ReportExportRepository
	storage      storage.Storage
	auditService *AuditLogService
	logger       *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(
	kpiService *KPIService,
	exportRepo *repository.ReportExportRepository,
	store storage.Storage,
	auditService *AuditLogService,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		kpiService:   kpiService,
		exportRepo:   exportRepo,
		storage:      store,
		auditService: auditService,
		logger:       logger,
	}
}

// ExportKPISummary writes the project's KPI summary as CSV to storage and records the export
func (s *ReportService) ExportKPISummary(ctx context.Context, projectCode string) (*domain.ReportExportDTO, error) {
	summary, err := s.kpiService.ProjectSummary(ctx, projectCode)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeKPISummaryCSV(&buf, summary); err != nil {
		return nil, fmt.Errorf("failed to render KPI summary: %w", err)
	}

	filename := fmt.Sprintf("kpi-summary-%s-%s.csv", projectCode, time.Now().UTC().Format("20060102"))
	storagePath, size, err := s.storage.Upload(ctx, "reports/"+projectCode, filename, csvContentType, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	export := &domain.ReportExport{
		ProjectCode: projectCode,
		Kind:        ReportKindKPISummary,
		Filename:    filename,
		ContentType: csvContentType,
		Size:        size,
		StoragePath: storagePath,
		CreatedBy:   actorID(ctx),
	}
	if err := s.exportRepo.Create(ctx, export); err != nil {
		// the stored file has no row pointing at it anymore
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned report", zap.String("path", storagePath), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to record report export: %w", err)
	}

	s.logger.Info("KPI summary exported",
		zap.String("project_code", projectCode),
		zap.String("report_id", export.ID.String()),
		zap.Int64("size", size))
	if s.auditService != nil {
		_ = s.auditService.LogExport(ctx, "project", projectCode, len(summary.Activities), "csv")
	}

	dto := mapper.ToReportExportDTO(export)
	return &dto, nil
}

// ListByProject returns the newest exports of a project
func (s *ReportService) ListByProject(ctx context.Context, projectCode string, limit int) ([]domain.ReportExportDTO, error) {
	exports, err := s.exportRepo.ListByProject(ctx, projectCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list report exports: %w", err)
	}
	dtos := make([]domain.ReportExportDTO, len(exports))
	for i := range exports {
		dtos[i] = mapper.ToReportExportDTO(&exports[i])
	}
	return dtos, nil
}

// Download opens a stored export. The caller closes the reader.
func (s *ReportService) Download(ctx context.Context, id uuid.UUID) (*domain.ReportExport, io.ReadCloser, error) {
	export, err := s.exportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, wrapNotFound(err, "report export")
	}
	rc, err := s.storage.Download(ctx, export.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report: %w", err)
	}
	return export, rc, nil
}

func writeKPISummaryCSV(w io.Writer, summary *ProjectKPISummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(kpiSummaryHeader); err != nil {
		return err
	}
	for _, c := range summary.Activities {
		if err := cw.Write(comparisonRow(c.ActivityName, c.Zone, c)); err != nil {
			return err
		}
	}
	total := summary.Summary
	totalRow := comparisonRow("TOTAL", "", reconcile.Comparison{
		BOQPlanned:         total.BOQPlanned,
		KPITotalPlanned:    total.KPITotalPlanned,
		KPITotalActual:     total.KPITotalActual,
		Variance:           total.Variance,
		ProgressPercentage: total.ProgressPercentage,
		Status:             total.Status,
	})
	if err := cw.Write(totalRow); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func comparisonRow(name, zone string, c reconcile.Comparison) []string {
	return []string{
		name,
		zone,
		c.BOQPlanned.String(),
		c.KPITotalPlanned.String(),
		c.KPITotalActual.String(),
		c.Variance.String(),
		c.ProgressPercentage.StringFixed(2),
		string(c.Status),
	}
}
