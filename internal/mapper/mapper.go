package mapper

import (
	"fmt"
	"time"

	"github.com/sitebook/sitebook-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	return domain.ProjectDTO{
		ID:          project.ID,
		Code:        project.Code,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		StartDate:   FormatDate(project.StartDate),
		EndDate:     FormatDate(project.EndDate),
		CreatedBy:   project.CreatedBy,
		CreatedAt:   project.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:   project.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// ToBOQActivityDTO converts BOQActivity to BOQActivityDTO
func ToBOQActivityDTO(activity *domain.BOQActivity) domain.BOQActivityDTO {
	return domain.BOQActivityDTO{
		ID:               activity.ID,
		ProjectCode:      activity.ProjectCode,
		ActivityName:     activity.ActivityName,
		Zone:             activity.Zone,
		Unit:             activity.Unit,
		PlannedUnits:     activity.PlannedUnits,
		CalendarDuration: activity.CalendarDuration,
		CreatedAt:        activity.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:        activity.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// ToKPIRecordDTO converts KPIRecord to KPIRecordDTO. The reported date follows the
// legacy fallback order activityDate, actualDate, targetDate.
func ToKPIRecordDTO(record *domain.KPIRecord) domain.KPIRecordDTO {
	dto := domain.KPIRecordDTO{
		ID:              record.ID,
		ProjectFullCode: record.ProjectFullCode,
		ActivityName:    record.ActivityName,
		Section:         record.Section,
		Quantity:        record.Quantity,
		InputType:       record.InputType,
		Source:          record.Source,
		TotalPlanned:    record.TotalPlanned,
		DaysCount:       record.DaysCount,
		RecordedBy:      record.RecordedBy,
		CreatedAt:       record.CreatedAt.UTC().Format(timestampLayout),
	}
	for _, d := range []*time.Time{record.ActivityDate, record.ActualDate, record.TargetDate} {
		if d != nil {
			dto.ActivityDate = d.Format(domain.DateLayout)
			break
		}
	}
	if record.ExternalRef != nil {
		dto.ExternalRef = *record.ExternalRef
	}
	return dto
}

// ToAuditLogDTO converts AuditLog to AuditLogDTO
func ToAuditLogDTO(log *domain.AuditLog) domain.AuditLogDTO {
	return domain.AuditLogDTO{
		ID:          log.ID,
		UserID:      log.UserID,
		UserEmail:   log.UserEmail,
		Action:      log.Action,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		EntityName:  log.EntityName,
		Details:     log.Details,
		IPAddress:   log.IPAddress,
		RequestID:   log.RequestID,
		PerformedAt: log.PerformedAt.UTC().Format(timestampLayout),
	}
}

// ToReportExportDTO converts ReportExport to ReportExportDTO
func ToReportExportDTO(export *domain.ReportExport) domain.ReportExportDTO {
	return domain.ReportExportDTO{
		ID:          export.ID,
		ProjectCode: export.ProjectCode,
		Kind:        export.Kind,
		Filename:    export.Filename,
		ContentType: export.ContentType,
		Size:        export.Size,
		CreatedBy:   export.CreatedBy,
		CreatedAt:   export.CreatedAt.UTC().Format(timestampLayout),
	}
}

// FormatDate renders an optional calendar date, or "" when unset
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}

// ParseDate parses an optional YYYY-MM-DD value. An empty string yields nil.
func ParseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return &t, nil
}

