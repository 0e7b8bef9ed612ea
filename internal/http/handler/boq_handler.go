package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
)

// BOQHandler serves BOQ activities and the reconciliation views derived from them
type BOQHandler struct {
	boqService *service.BOQService
	logger     *zap.Logger
}

func NewBOQHandler(boqService *service.BOQService, logger *zap.Logger) *BOQHandler {
	return &BOQHandler{
		boqService: boqService,
		logger:     logger,
	}
}

// List godoc
// @Summary List BOQ activities
// @Tags BOQ
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param projectCode query string false "Filter by project code"
// @Param zone query string false "Filter by zone"
// @Param search query string false "Search activity name"
// @Param sortBy query string false "Sort field" Enums(activityName, zone, plannedUnits, createdAt, updatedAt)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.BOQActivityDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq [get]
func (h *BOQHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	filter := repository.BOQFilter{
		ProjectCode: q.Get("projectCode"),
		Search:      q.Get("search"),
	}
	// an explicit empty zone selects activities without a zone
	if q.Has("zone") {
		zone := q.Get("zone")
		filter.Zone = &zone
	}

	result, err := h.boqService.List(r.Context(), filter, parseSort(r), page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create BOQ activity
// @Tags BOQ
// @Accept json
// @Produce json
// @Param request body domain.CreateBOQActivityRequest true "BOQ activity"
// @Success 201 {object} domain.BOQActivityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq [post]
func (h *BOQHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBOQActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	activity, err := h.boqService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/boq/"+activity.ID.String())
	respondJSON(w, http.StatusCreated, activity)
}

// GetByID godoc
// @Summary Get BOQ activity
// @Tags BOQ
// @Produce json
// @Param id path string true "BOQ activity ID" format(uuid)
// @Success 200 {object} domain.BOQActivityDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq/{id} [get]
func (h *BOQHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	activity, err := h.boqService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

// Update godoc
// @Summary Update BOQ activity
// @Description Renaming or rezoning an activity that already has KPI records is refused.
// @Tags BOQ
// @Accept json
// @Produce json
// @Param id path string true "BOQ activity ID" format(uuid)
// @Param request body domain.UpdateBOQActivityRequest true "BOQ activity"
// @Success 200 {object} domain.BOQActivityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq/{id} [put]
func (h *BOQHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdateBOQActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	activity, err := h.boqService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

// Delete godoc
// @Summary Delete BOQ activity
// @Description An activity with KPI records is only deleted with cascade=true, which removes the records too.
// @Tags BOQ
// @Param id path string true "BOQ activity ID" format(uuid)
// @Param cascade query bool false "Delete correlated KPI records"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq/{id} [delete]
func (h *BOQHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	cascade, _ := strconv.ParseBool(r.URL.Query().Get("cascade"))

	if err := h.boqService.Delete(r.Context(), id, cascade); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DailyTarget godoc
// @Summary Daily target of a BOQ activity
// @Description Planned units divided by the duration. The activity's calendar duration wins; days is the fallback.
// @Tags BOQ
// @Produce json
// @Param id path string true "BOQ activity ID" format(uuid)
// @Param days query int false "Fallback duration in days"
// @Success 200 {object} domain.DailyTargetDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq/{id}/daily-target [get]
func (h *BOQHandler) DailyTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = n
	}

	target, err := h.boqService.DailyTarget(r.Context(), id, days)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// KPIDrafts godoc
// @Summary Derive planned KPI drafts
// @Description Previews a single draft, expands the activity into a per-day schedule, or persists that schedule as Planned KPI records.
// @Tags BOQ
// @Accept json
// @Produce json
// @Param id path string true "BOQ activity ID" format(uuid)
// @Param request body domain.KPIDraftRequest true "Draft options"
// @Success 200 {object} service.KPIDraftsResult
// @Success 201 {object} service.KPIDraftsResult
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq/{id}/kpi-drafts [post]
func (h *BOQHandler) KPIDrafts(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.KPIDraftRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.boqService.KPIDrafts(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Persisted > 0 {
		status = http.StatusCreated
	}
	respondJSON(w, status, result)
}

// Comparison godoc
// @Summary Compare a BOQ activity with its KPI records
// @Tags BOQ
// @Produce json
// @Param id path string true "BOQ activity ID" format(uuid)
// @Success 200 {object} reconcile.Comparison
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /boq/{id}/comparison [get]
func (h *BOQHandler) Comparison(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	comparison, err := h.boqService.Comparison(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, comparison)
}
