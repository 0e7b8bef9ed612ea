package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/service"
)

// AuditHandler handles audit log related HTTP requests
type AuditHandler struct {
	auditService *service.AuditLogService
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditLogService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// AuditStatsResponse represents audit log statistics
type AuditStatsResponse struct {
	ActionCounts map[domain.AuditAction]int64 `json:"actionCounts"`
	StartTime    string                       `json:"startTime"`
	EndTime      string                       `json:"endTime"`
}

// List godoc
// @Summary List audit logs
// @Description Get paginated audit logs with optional filters
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param userId query string false "Filter by user ID"
// @Param action query string false "Filter by action" Enums(create, update, delete, permission_change, role_change, export, import)
// @Param entityType query string false "Filter by entity type"
// @Param entityId query string false "Filter by entity ID"
// @Param startTime query string false "Filter from time (RFC3339)"
// @Param endTime query string false "Filter until time (RFC3339)"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.AuditLogDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	params := service.AuditLogQueryParams{
		UserID:     q.Get("userId"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		Page:       page,
		PageSize:   pageSize,
	}
	if a := q.Get("action"); a != "" {
		action := domain.AuditAction(a)
		params.Action = &action
	}

	var err error
	if params.StartTime, err = parseTimeQuery(r, "startTime"); err != nil {
		respondWithError(w, http.StatusBadRequest, "startTime must be an RFC3339 timestamp")
		return
	}
	if params.EndTime, err = parseTimeQuery(r, "endTime"); err != nil {
		respondWithError(w, http.StatusBadRequest, "endTime must be an RFC3339 timestamp")
		return
	}

	result, err := h.auditService.List(r.Context(), params)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get audit log entry
// @Tags Audit
// @Produce json
// @Param id path string true "Audit log ID" format(uuid)
// @Success 200 {object} domain.AuditLogDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit/{id} [get]
func (h *AuditHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.auditService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// GetByEntity godoc
// @Summary Audit history of an entity
// @Tags Audit
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID or code"
// @Param limit query int false "Maximum entries" default(20)
// @Success 200 {array} domain.AuditLogDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit/entity/{entityType}/{entityId} [get]
func (h *AuditHandler) GetByEntity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.auditService.GetByEntity(r.Context(), chi.URLParam(r, "entityType"), chi.URLParam(r, "entityId"), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// GetByUser godoc
// @Summary Audit entries performed by a user
// @Tags Audit
// @Produce json
// @Param userId path string true "User ID"
// @Param limit query int false "Maximum entries" default(20)
// @Success 200 {array} domain.AuditLogDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit/user/{userId} [get]
func (h *AuditHandler) GetByUser(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.auditService.GetByUser(r.Context(), chi.URLParam(r, "userId"), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// GetStats godoc
// @Summary Audit statistics
// @Description Counts entries per action. Defaults to the last 30 days.
// @Tags Audit
// @Produce json
// @Param startTime query string false "From time (RFC3339)"
// @Param endTime query string false "Until time (RFC3339)"
// @Success 200 {object} AuditStatsResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit/stats [get]
func (h *AuditHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	from, err := parseTimeQuery(r, "startTime")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "startTime must be an RFC3339 timestamp")
		return
	}
	until, err := parseTimeQuery(r, "endTime")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "endTime must be an RFC3339 timestamp")
		return
	}
	if from != nil {
		start = *from
	}
	if until != nil {
		end = *until
	}

	counts, err := h.auditService.GetStats(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, AuditStatsResponse{
		ActionCounts: counts,
		StartTime:    start.UTC().Format(time.RFC3339),
		EndTime:      end.UTC().Format(time.RFC3339),
	})
}

// parseTimeQuery parses an optional RFC3339 query parameter into UTC
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
