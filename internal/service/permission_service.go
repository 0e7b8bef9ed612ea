package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// PermissionService exposes the permission catalog and manages per-user role and
// permission overrides
type PermissionService struct {
	userRepo     *repository.UserRepository
	resolver     *permission.Resolver
	auditService *AuditLogService
	logger       *zap.Logger
}

// NewPermissionService creates a new permission service
func NewPermissionService(
	userRepo *repository.UserRepository,
	resolver *permission.Resolver,
	auditService *AuditLogService,
	logger *zap.Logger,
) *PermissionService {
	return &PermissionService{
		userRepo:     userRepo,
		resolver:     resolver,
		auditService: auditService,
		logger:       logger,
	}
}

// Catalog returns the permission universe and every role's defaults
func (s *PermissionService) Catalog() domain.PermissionCatalogDTO {
	c := s.resolver.Catalog()
	roles := c.Roles()
	dto := domain.PermissionCatalogDTO{
		Permissions:      permissionStrings(c.Permissions()),
		Roles:            make([]domain.RoleCatalogDTO, 0, len(roles)),
		FallbackRole:     c.FallbackRole(),
		AdminSuperseding: permissionStrings(c.AdminSuperseding()),
	}
	for _, role := range roles {
		defaults, _ := c.RoleDefaults(role)
		dto.Roles = append(dto.Roles, domain.RoleCatalogDTO{
			Role:        role,
			Permissions: permissionStrings(defaults),
		})
	}
	return dto
}

// CurrentUser describes the authenticated caller
func (s *PermissionService) CurrentUser(userCtx *auth.UserContext) domain.CurrentUserDTO {
	return domain.CurrentUserDTO{
		ID:          userCtx.UserID,
		Email:       userCtx.Email,
		DisplayName: userCtx.DisplayName,
		Role:        userCtx.Role,
		Mode:        string(userCtx.Mode),
		Permissions: userCtx.Permissions.Strings(),
		IsAPIKey:    userCtx.IsAPIKey,
	}
}

// EffectivePermissions splits the caller's effective set into category and action
func (s *PermissionService) EffectivePermissions(userCtx *auth.UserContext) []domain.PermissionDTO {
	perms := userCtx.Permissions.Slice()
	out := make([]domain.PermissionDTO, len(perms))
	for i, p := range perms {
		out[i] = domain.PermissionDTO{
			Permission: string(p),
			Category:   p.Category(),
			Action:     p.Action(),
		}
	}
	return out
}

// Check evaluates an access expression for the caller
func (s *PermissionService) Check(userCtx *auth.UserContext, req *domain.AccessCheckRequest) bool {
	return userCtx.Check(ExpressionFromRequest(req))
}

// ExpressionFromRequest converts the wire form of an access expression
func ExpressionFromRequest(req *domain.AccessCheckRequest) permission.Expression {
	expr := permission.Expression{
		Permission: domain.Permission(strings.TrimSpace(req.Permission)),
		RequireAll: req.RequireAll,
		Category:   strings.TrimSpace(req.Category),
		Action:     strings.TrimSpace(req.Action),
		Role:       domain.Role(strings.TrimSpace(req.Role)),
	}
	for _, p := range req.Permissions {
		expr.Permissions = append(expr.Permissions, domain.Permission(strings.TrimSpace(p)))
	}
	return expr
}

// GetUserPermissions returns a user's stored overrides with the resolved set
func (s *PermissionService) GetUserPermissions(ctx context.Context, userID string) (*domain.UserPermissionsDTO, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "user "+userID)
	}
	return s.toUserPermissionsDTO(user), nil
}

// UpdateRole assigns a catalog role. Demoting the last active admin is refused.
func (s *PermissionService) UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.UserPermissionsDTO, error) {
	if !s.resolver.Catalog().HasRole(role) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "user "+userID)
	}
	oldRole := user.Role
	if oldRole == role {
		return s.toUserPermissionsDTO(user), nil
	}

	if oldRole == domain.RoleAdmin && user.IsActive {
		others, err := s.userRepo.CountActiveAdmins(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count admins: %w", err)
		}
		if others == 0 {
			return nil, ErrCannotRemoveLastAdmin
		}
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, wrapNotFound(err, "user "+userID)
	}
	user.Role = role

	s.logger.Info("user role changed",
		zap.String("user_id", userID),
		zap.String("old_role", string(oldRole)),
		zap.String("new_role", string(role)),
		zap.String("changed_by", actorID(ctx)))
	if s.auditService != nil {
		_ = s.auditService.LogRoleChange(ctx, userID, oldRole, role)
	}

	return s.toUserPermissionsDTO(user), nil
}

// UpdatePermissions replaces a user's permission overrides. Every permission must
// exist in the catalog; duplicates are collapsed in first-seen order.
func (s *PermissionService) UpdatePermissions(ctx context.Context, userID string, req *domain.UpdateUserPermissionsRequest) (*domain.UserPermissionsDTO, error) {
	perms := make([]string, 0, len(req.Permissions))
	seen := make(map[string]struct{}, len(req.Permissions))
	for _, p := range req.Permissions {
		p = strings.TrimSpace(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	if unknown := s.resolver.Catalog().Unknown(perms); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPermission, strings.Join(unknown, ", "))
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "user "+userID)
	}
	before := s.toUserPermissionsDTO(user)

	if err := s.userRepo.UpdatePermissions(ctx, userID, req.CustomPermissionsEnabled, perms); err != nil {
		return nil, wrapNotFound(err, "user "+userID)
	}
	user.CustomPermissionsEnabled = req.CustomPermissionsEnabled
	user.Permissions = perms
	after := s.toUserPermissionsDTO(user)

	s.logger.Info("user permissions changed",
		zap.String("user_id", userID),
		zap.String("mode", after.Mode),
		zap.Int("permissions", len(perms)),
		zap.String("changed_by", actorID(ctx)))
	if s.auditService != nil {
		_ = s.auditService.LogPermissionChange(ctx, userID, before, after)
	}

	return after, nil
}

func (s *PermissionService) toUserPermissionsDTO(user *domain.User) *domain.UserPermissionsDTO {
	subject := permission.SubjectFromUser(user)
	stored := user.Permissions
	if stored == nil {
		stored = []string{}
	}
	return &domain.UserPermissionsDTO{
		UserID:                   user.ID,
		Role:                     user.Role,
		Mode:                     string(s.resolver.Mode(subject)),
		CustomPermissionsEnabled: user.CustomPermissionsEnabled,
		Permissions:              stored,
		EffectivePermissions:     s.resolver.Resolve(subject).Strings(),
	}
}

func permissionStrings(perms []domain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
