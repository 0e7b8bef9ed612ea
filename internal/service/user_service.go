package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
	"github.com/sitebook/sitebook-api/internal/repository"
)

// UserService handles user listing, login bookkeeping and deletion
type UserService struct {
	userRepo     *repository.UserRepository
	resolver     *permission.Resolver
	auditService *AuditLogService
	logger       *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo *repository.UserRepository,
	resolver *permission.Resolver,
	auditService *AuditLogService,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		resolver:     resolver,
		auditService: auditService,
		logger:       logger,
	}
}

// List returns a paginated list of users ordered by email
func (s *UserService) List(ctx context.Context, filter repository.UserFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	users, total, err := s.userRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return paginated(users, total, page, pageSize), nil
}

// GetByID retrieves a user
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "user "+id)
	}
	return user, nil
}

// RecordLogin stores the caller on first sight with the fallback role and otherwise
// refreshes the profile fields and login time. Roles and overrides are never touched.
// API key callers are not stored.
func (s *UserService) RecordLogin(ctx context.Context, userCtx *auth.UserContext) error {
	if userCtx.IsAPIKey {
		return nil
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:          userCtx.UserID,
		Email:       userCtx.Email,
		DisplayName: userCtx.DisplayName,
		Role:        s.resolver.Catalog().FallbackRole(),
		Permissions: []string{},
		IsActive:    true,
		LastLoginAt: &now,
	}
	if user.Email == "" {
		user.Email = userCtx.UserID
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Delete removes a user. Callers cannot delete themselves and the last active admin
// is kept.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if id == actorID(ctx) {
		return ErrCannotDeleteSelf
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return wrapNotFound(err, "user "+id)
	}

	if user.Role == domain.RoleAdmin && user.IsActive {
		others, err := s.userRepo.CountActiveAdmins(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if others == 0 {
			return ErrCannotRemoveLastAdmin
		}
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return wrapNotFound(err, "user "+id)
	}

	s.logger.Info("user deleted",
		zap.String("user_id", id),
		zap.String("deleted_by", actorID(ctx)))
	if s.auditService != nil {
		_ = s.auditService.LogDelete(ctx, nil, "user", id, user.Email, user)
	}
	return nil
}
