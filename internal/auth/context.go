package auth

import (
	"context"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
)

// SystemUserID identifies requests authenticated with the API key
const SystemUserID = "system"

// UserContext holds the authenticated caller and the permission set resolved for
// this request. Permissions are resolved once by the middleware; handlers only check.
type UserContext struct {
	UserID      string
	Email       string
	DisplayName string
	// Role is the stored role; an undefined role still resolves with the fallback defaults
	Role        domain.Role
	Mode        permission.Mode
	Permissions permission.Set
	IsAPIKey    bool
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// Has reports whether the caller's effective set grants p
func (u *UserContext) Has(p domain.Permission) bool {
	return permission.HasAccess(u.Permissions, p)
}

// Check evaluates an access expression for the caller
func (u *UserContext) Check(expr permission.Expression) bool {
	return permission.Check(u.Permissions, u.Role, expr)
}

// IsAdmin reports whether the caller holds the admin role
func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}
