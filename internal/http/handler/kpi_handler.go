package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
)

type KPIHandler struct {
	kpiService *service.KPIService
	logger     *zap.Logger
}

func NewKPIHandler(kpiService *service.KPIService, logger *zap.Logger) *KPIHandler {
	return &KPIHandler{
		kpiService: kpiService,
		logger:     logger,
	}
}

// List godoc
// @Summary List KPI records
// @Tags KPI
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectCode query string false "Filter by project code"
// @Param activityName query string false "Filter by activity name"
// @Param section query string false "Filter by section"
// @Param inputType query string false "Filter by input type" Enums(Planned, Actual)
// @Param source query string false "Filter by source" Enums(manual, BOQ, warehouse)
// @Param from query string false "Activity date from (YYYY-MM-DD)"
// @Param to query string false "Activity date to (YYYY-MM-DD)"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.KPIRecordDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /kpi [get]
func (h *KPIHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	filter := repository.KPIFilter{
		ProjectCode:  q.Get("projectCode"),
		ActivityName: q.Get("activityName"),
	}
	if q.Has("section") {
		section := q.Get("section")
		filter.Section = &section
	}
	if it := q.Get("inputType"); it != "" {
		inputType := domain.KPIInputType(it)
		if !inputType.IsValid() {
			respondWithError(w, http.StatusBadRequest, "inputType must be Planned or Actual")
			return
		}
		filter.InputType = &inputType
	}
	if s := q.Get("source"); s != "" {
		source := domain.KPISource(s)
		filter.Source = &source
	}

	from, err := mapper.ParseDate(q.Get("from"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "from must be a date (YYYY-MM-DD)")
		return
	}
	to, err := mapper.ParseDate(q.Get("to"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "to must be a date (YYYY-MM-DD)")
		return
	}
	filter.From, filter.To = from, to

	result, err := h.kpiService.List(r.Context(), filter, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Record a KPI entry
// @Description Planned entries are checked against the BOQ ceiling: rejected with 422 when enforcement is on, stored with a warning otherwise. Conflicting legacy dates are rejected.
// @Tags KPI
// @Accept json
// @Produce json
// @Param request body domain.CreateKPIRecordRequest true "KPI record"
// @Success 201 {object} domain.CreateKPIRecordResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /kpi [post]
func (h *KPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateKPIRecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.kpiService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// GetByID godoc
// @Summary Get KPI record
// @Tags KPI
// @Produce json
// @Param id path string true "KPI record ID" format(uuid)
// @Success 200 {object} domain.KPIRecordDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /kpi/{id} [get]
func (h *KPIHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.kpiService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// Delete godoc
// @Summary Delete KPI record
// @Tags KPI
// @Param id path string true "KPI record ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /kpi/{id} [delete]
func (h *KPIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.kpiService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate godoc
// @Summary Check planned quantities against a BOQ ceiling
// @Description Advisory check; nothing is stored. Accepted quantities accumulate in order, rejected ones do not.
// @Tags KPI
// @Accept json
// @Produce json
// @Param request body domain.ValidateKPIRequest true "Candidate quantities"
// @Success 200 {object} reconcile.BatchResult
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /kpi/validate [post]
func (h *KPIHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.ValidateKPIRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.kpiService.Validate(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
