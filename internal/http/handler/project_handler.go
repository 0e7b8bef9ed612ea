package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	kpiService     *service.KPIService
	reportService  *service.ReportService
	syncService    *service.KPISyncService
	logger         *zap.Logger
}

func NewProjectHandler(
	projectService *service.ProjectService,
	kpiService *service.KPIService,
	reportService *service.ReportService,
	syncService *service.KPISyncService,
	logger *zap.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		kpiService:     kpiService,
		reportService:  reportService,
		syncService:    syncService,
		logger:         logger,
	}
}

// List godoc
// @Summary List projects
// @Description Get paginated list of projects with optional filters
// @Tags Projects
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(planning, active, on_hold, completed, cancelled)
// @Param search query string false "Search code and name"
// @Param sortBy query string false "Sort field" Enums(code, name, status, startDate, createdAt, updatedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Failure 401 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filter := repository.ProjectFilter{Search: r.URL.Query().Get("search")}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.ProjectStatus(s)
		filter.Status = &status
	}

	result, err := h.projectService.List(r.Context(), filter, parseSort(r), page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create project
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body domain.CreateProjectRequest true "Project data"
// @Success 201 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	project, err := h.projectService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/projects/"+project.Code)
	respondJSON(w, http.StatusCreated, project)
}

// GetByCode godoc
// @Summary Get project
// @Tags Projects
// @Produce json
// @Param code path string true "Project code"
// @Success 200 {object} domain.ProjectDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code} [get]
func (h *ProjectHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectService.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// Update godoc
// @Summary Update project
// @Tags Projects
// @Accept json
// @Produce json
// @Param code path string true "Project code"
// @Param request body domain.UpdateProjectRequest true "Project data"
// @Success 200 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code} [put]
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	project, err := h.projectService.Update(r.Context(), chi.URLParam(r, "code"), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// Delete godoc
// @Summary Delete project
// @Description Deletes a project. Projects that still have BOQ activities are refused.
// @Tags Projects
// @Param code path string true "Project code"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code} [delete]
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.projectService.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// KPISummary godoc
// @Summary Project KPI summary
// @Description Compares every BOQ activity of the project with its KPI records and rolls the results up
// @Tags Projects
// @Produce json
// @Param code path string true "Project code"
// @Success 200 {object} service.ProjectKPISummary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code}/kpi-summary [get]
func (h *ProjectHandler) KPISummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.kpiService.ProjectSummary(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ExportKPIReport godoc
// @Summary Export the KPI summary as CSV
// @Description Renders the project KPI summary as CSV and stores it for download
// @Tags Reports
// @Produce json
// @Param code path string true "Project code"
// @Success 201 {object} domain.ReportExportDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code}/reports/kpi [post]
func (h *ProjectHandler) ExportKPIReport(w http.ResponseWriter, r *http.Request) {
	export, err := h.reportService.ExportKPISummary(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, export)
}

// ListReports godoc
// @Summary List report exports of a project
// @Tags Reports
// @Produce json
// @Param code path string true "Project code"
// @Param limit query int false "Maximum number of exports" default(50)
// @Success 200 {array} domain.ReportExportDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code}/reports [get]
func (h *ProjectHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	exports, err := h.reportService.ListByProject(r.Context(), chi.URLParam(r, "code"), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, exports)
}

// SyncKPI godoc
// @Summary Sync actual quantities from the data warehouse
// @Description Pulls site-diary quantities for the project and stores them as Actual KPI records
// @Tags Projects
// @Produce json
// @Param code path string true "Project code"
// @Success 200 {object} service.KPISyncResult
// @Failure 404 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{code}/kpi-sync [post]
func (h *ProjectHandler) SyncKPI(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.SyncProject(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
