package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/service"
)

type AuthHandler struct {
	userService       *service.UserService
	permissionService *service.PermissionService
	logger            *zap.Logger
}

func NewAuthHandler(
	userService *service.UserService,
	permissionService *service.PermissionService,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userService:       userService,
		permissionService: permissionService,
		logger:            logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the caller with role, permission mode and effective permissions. First-time callers are stored with the fallback role.
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.CurrentUserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	// a failed upsert must not lock the user out
	if err := h.userService.RecordLogin(r.Context(), userCtx); err != nil {
		h.logger.Warn("failed to record login", zap.String("user_id", userCtx.UserID), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, h.permissionService.CurrentUser(userCtx))
}

// Permissions godoc
// @Summary Get current user's permissions
// @Description Returns the caller's effective permissions split into category and action
// @Tags Auth
// @Produce json
// @Success 200 {array} domain.PermissionDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/permissions [get]
func (h *AuthHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	respondJSON(w, http.StatusOK, h.permissionService.EffectivePermissions(userCtx))
}

// Check godoc
// @Summary Evaluate an access expression
// @Description Checks an access expression against the caller. Every supplied criterion must hold; an empty expression is denied.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.AccessCheckRequest true "Access expression"
// @Success 200 {object} domain.AccessCheckResponse
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/check [post]
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req domain.AccessCheckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	respondJSON(w, http.StatusOK, domain.AccessCheckResponse{
		Allowed: h.permissionService.Check(userCtx, &req),
	})
}
