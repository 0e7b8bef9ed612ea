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

// UserHandler serves user administration: listing, role and permission overrides
type UserHandler struct {
	userService       *service.UserService
	permissionService *service.PermissionService
	logger            *zap.Logger
}

func NewUserHandler(userService *service.UserService, permissionService *service.PermissionService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService:       userService,
		permissionService: permissionService,
		logger:            logger,
	}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param role query string false "Filter by role" Enums(admin, manager, engineer, viewer)
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search email and display name"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.User}
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filter := repository.UserFilter{Search: r.URL.Query().Get("search")}
	if role := r.URL.Query().Get("role"); role != "" {
		rl := domain.Role(role)
		filter.Role = &rl
	}
	if active := r.URL.Query().Get("active"); active != "" {
		if b, err := strconv.ParseBool(active); err == nil {
			filter.IsActive = &b
		}
	}

	result, err := h.userService.List(r.Context(), filter, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} domain.User
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id} [get]
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Delete godoc
// @Summary Delete user
// @Description Removes a user. Callers cannot delete themselves and the last active admin cannot be deleted.
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPermissions godoc
// @Summary Get a user's permission overrides
// @Description Returns the stored role and overrides together with the resolved effective set
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} domain.UserPermissionsDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id}/permissions [get]
func (h *UserHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	dto, err := h.permissionService.GetUserPermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// UpdatePermissions godoc
// @Summary Replace a user's permission overrides
// @Description With customPermissionsEnabled the listed permissions replace the role defaults; otherwise they are added to them.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body domain.UpdateUserPermissionsRequest true "Overrides"
// @Success 200 {object} domain.UserPermissionsDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id}/permissions [put]
func (h *UserHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserPermissionsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	dto, err := h.permissionService.UpdatePermissions(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body domain.UpdateUserRoleRequest true "Role"
// @Success 200 {object} domain.UserPermissionsDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /users/{id}/role [put]
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	dto, err := h.permissionService.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

// Catalog godoc
// @Summary Permission catalog
// @Description Lists every known permission, the per-role defaults and the admin-only permissions
// @Tags Permissions
// @Produce json
// @Success 200 {object} domain.PermissionCatalogDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /permissions/catalog [get]
func (h *UserHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.permissionService.Catalog())
}
