package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// UserFilter narrows user listings
type UserFilter struct {
	Role     *domain.Role
	IsActive *bool
	Search   string
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by the token subject
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter, page, pageSize int) ([]domain.User, int64, error) {
	var users []domain.User
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.User{})
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(`(LOWER(email) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := paginate(query, page, pageSize).Order("email").Find(&users).Error
	return users, total, err
}

// UpdateRole changes only the role column
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePermissions stores the custom flag and the permission overrides together
func (r *UserRepository) UpdatePermissions(ctx context.Context, id string, customEnabled bool, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	// a struct update runs the json serializer on the permissions column
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).
		Select("custom_permissions_enabled", "permissions").
		Updates(&domain.User{CustomPermissionsEnabled: customEnabled, Permissions: permissions})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveAdmins counts active users with the admin role, optionally ignoring one user
func (r *UserRepository) CountActiveAdmins(ctx context.Context, excludeID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("role = ? AND is_active = ?", domain.RoleAdmin, true)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Upsert creates the user on first sight and otherwise refreshes profile fields only,
// preserving role and permission overrides
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	var existing domain.User
	err := r.db.WithContext(ctx).Where("id = ?", user.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(user).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]any{}
	if user.Email != "" {
		updates["email"] = user.Email
	}
	if user.DisplayName != "" {
		updates["display_name"] = user.DisplayName
	}
	if user.LastLoginAt != nil {
		updates["last_login_at"] = user.LastLoginAt
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", existing.ID).Updates(updates).Error
}
