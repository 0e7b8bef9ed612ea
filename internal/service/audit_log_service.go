package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// AuditLogService handles audit logging operations
type AuditLogService struct {
	auditRepo *repository.AuditLogRepository
	logger    *zap.Logger
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(auditRepo *repository.AuditLogRepository, logger *zap.Logger) *AuditLogService {
	return &AuditLogService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// LogEntry represents the input for creating an audit log entry
type LogEntry struct {
	Action     domain.AuditAction
	EntityType string
	EntityID   string
	EntityName string
	OldValues  any
	NewValues  any
	Metadata   map[string]any
}

// auditDetails is the JSON document stored in audit_logs.details
type auditDetails struct {
	Old      any            `json:"old,omitempty"`
	New      any            `json:"new,omitempty"`
	Changes  map[string]any `json:"changes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Log creates an audit log entry from context and request. r may be nil for
// entries written by background jobs.
func (s *AuditLogService) Log(ctx context.Context, r *http.Request, entry LogEntry) error {
	auditLog := &domain.AuditLog{
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		EntityName:  entry.EntityName,
		PerformedAt: time.Now().UTC(),
	}

	if userCtx, ok := auth.FromContext(ctx); ok {
		auditLog.UserID = userCtx.UserID
		auditLog.UserEmail = userCtx.Email
	}

	if r != nil {
		auditLog.IPAddress = clientIP(r)
		auditLog.RequestID = r.Header.Get("X-Request-ID")
	}

	details := auditDetails{
		Old:      entry.OldValues,
		New:      entry.NewValues,
		Metadata: entry.Metadata,
	}
	if entry.OldValues != nil && entry.NewValues != nil {
		details.Changes = s.calculateChanges(entry.OldValues, entry.NewValues)
	}
	if data, err := json.Marshal(details); err == nil {
		auditLog.Details = string(data)
	} else {
		s.logger.Warn("failed to serialize audit details", zap.Error(err))
		auditLog.Details = "{}"
	}

	if err := s.auditRepo.Create(ctx, auditLog); err != nil {
		s.logger.Error("failed to create audit log",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err))
		return err
	}
	return nil
}

// LogCreate logs a create operation
func (s *AuditLogService) LogCreate(ctx context.Context, r *http.Request, entityType, entityID, entityName string, newValues any) error {
	return s.Log(ctx, r, LogEntry{
		Action:     domain.AuditActionCreate,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		NewValues:  newValues,
	})
}

// LogUpdate logs an update operation
func (s *AuditLogService) LogUpdate(ctx context.Context, r *http.Request, entityType, entityID, entityName string, oldValues, newValues any) error {
	return s.Log(ctx, r, LogEntry{
		Action:     domain.AuditActionUpdate,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
}

// LogDelete logs a delete operation
func (s *AuditLogService) LogDelete(ctx context.Context, r *http.Request, entityType, entityID, entityName string, oldValues any) error {
	return s.Log(ctx, r, LogEntry{
		Action:     domain.AuditActionDelete,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		OldValues:  oldValues,
	})
}

// LogRoleChange logs a change of a user's role
func (s *AuditLogService) LogRoleChange(ctx context.Context, userID string, oldRole, newRole domain.Role) error {
	return s.Log(ctx, nil, LogEntry{
		Action:     domain.AuditActionRoleChange,
		EntityType: "user",
		EntityID:   userID,
		OldValues:  map[string]any{"role": oldRole},
		NewValues:  map[string]any{"role": newRole},
	})
}

// LogPermissionChange logs a change of a user's permission overrides
func (s *AuditLogService) LogPermissionChange(ctx context.Context, userID string, oldValues, newValues *domain.UserPermissionsDTO) error {
	return s.Log(ctx, nil, LogEntry{
		Action:     domain.AuditActionPermissionChange,
		EntityType: "user",
		EntityID:   userID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
}

// LogExport logs a report export
func (s *AuditLogService) LogExport(ctx context.Context, entityType, entityID string, rows int, format string) error {
	return s.Log(ctx, nil, LogEntry{
		Action:     domain.AuditActionExport,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata: map[string]any{
			"rows":   rows,
			"format": format,
		},
	})
}

// LogImport logs records imported by a background job
func (s *AuditLogService) LogImport(ctx context.Context, entityType, entityID string, count int, source string) error {
	return s.Log(ctx, nil, LogEntry{
		Action:     domain.AuditActionImport,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata: map[string]any{
			"count":  count,
			"source": source,
		},
	})
}

// AuditLogQueryParams represents query parameters for listing audit logs
type AuditLogQueryParams struct {
	UserID     string
	Action     *domain.AuditAction
	EntityType string
	EntityID   string
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	PageSize   int
}

// List retrieves audit logs with filters
func (s *AuditLogService) List(ctx context.Context, params AuditLogQueryParams) (*domain.PaginatedResponse, error) {
	filter := &repository.AuditLogFilter{
		UserID:     params.UserID,
		Action:     params.Action,
		EntityType: params.EntityType,
		EntityID:   params.EntityID,
		StartTime:  params.StartTime,
		EndTime:    params.EndTime,
	}

	page, pageSize := repository.NormalizePage(params.Page, params.PageSize)
	logs, total, err := s.auditRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return paginated(toAuditLogDTOs(logs), total, page, pageSize), nil
}

// GetByID retrieves a specific audit log entry
func (s *AuditLogService) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLogDTO, error) {
	log, err := s.auditRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "audit log entry")
	}
	dto := mapper.ToAuditLogDTO(log)
	return &dto, nil
}

// GetByEntity returns the newest entries about one entity
func (s *AuditLogService) GetByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLogDTO, error) {
	_, limit = repository.NormalizePage(1, limit)
	logs, err := s.auditRepo.ListByEntity(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return toAuditLogDTOs(logs), nil
}

// GetByUser returns the newest entries performed by one user
func (s *AuditLogService) GetByUser(ctx context.Context, userID string, limit int) ([]domain.AuditLogDTO, error) {
	_, limit = repository.NormalizePage(1, limit)
	logs, err := s.auditRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return toAuditLogDTOs(logs), nil
}

// GetStats returns audit log statistics for a time range
func (s *AuditLogService) GetStats(ctx context.Context, start, end time.Time) (map[domain.AuditAction]int64, error) {
	return s.auditRepo.CountByAction(ctx, start.UTC(), end.UTC())
}

// CleanupOldLogs removes logs older than the specified retention period
func (s *AuditLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	count, err := s.auditRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		s.logger.Error("failed to cleanup old audit logs",
			zap.Int("retention_days", retentionDays),
			zap.Error(err))
		return 0, err
	}

	if count > 0 {
		s.logger.Info("cleaned up old audit logs",
			zap.Int64("deleted_count", count),
			zap.Int("retention_days", retentionDays))
	}

	return count, nil
}

func toAuditLogDTOs(logs []domain.AuditLog) []domain.AuditLogDTO {
	dtos := make([]domain.AuditLogDTO, len(logs))
	for i := range logs {
		dtos[i] = mapper.ToAuditLogDTO(&logs[i])
	}
	return dtos
}

// calculateChanges determines what changed between old and new values
func (s *AuditLogService) calculateChanges(oldValues, newValues any) map[string]any {
	changes := make(map[string]any)

	oldMap := s.toMap(oldValues)
	newMap := s.toMap(newValues)

	// Find modified and new fields
	for key, newVal := range newMap {
		if oldVal, exists := oldMap[key]; exists {
			if !reflect.DeepEqual(oldVal, newVal) {
				changes[key] = map[string]any{
					"old": oldVal,
					"new": newVal,
				}
			}
		} else {
			changes[key] = map[string]any{
				"old": nil,
				"new": newVal,
			}
		}
	}

	// Find deleted fields
	for key, oldVal := range oldMap {
		if _, exists := newMap[key]; !exists {
			changes[key] = map[string]any{
				"old": oldVal,
				"new": nil,
			}
		}
	}

	return changes
}

// toMap converts an interface to a map for comparison
func (s *AuditLogService) toMap(v any) map[string]any {
	result := make(map[string]any)

	if v == nil {
		return result
	}

	// If already a map, return it
	if m, ok := v.(map[string]any); ok {
		return m
	}

	// Try to marshal and unmarshal to get a map
	data, err := json.Marshal(v)
	if err != nil {
		return result
	}

	_ = json.Unmarshal(data, &result)
	return result
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (remove port)
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
