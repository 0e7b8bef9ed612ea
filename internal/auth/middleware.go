package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
)

// UserLookup loads the stored user for a token subject
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Middleware authenticates requests and resolves the caller's effective permissions
type Middleware struct {
	jwtValidator *JWTValidator
	apiKey       string
	users        UserLookup
	resolver     *permission.Resolver
	logger       *zap.Logger
}

// NewMiddleware creates the authentication middleware
func NewMiddleware(cfg *config.AuthConfig, users UserLookup, resolver *permission.Resolver, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(cfg),
		apiKey:       cfg.APIKey,
		users:        users,
		resolver:     resolver,
		logger:       logger,
	}
}

// Authenticate accepts either the x-api-key header or a Bearer token
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeProblem(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			userCtx := m.systemUser()
			m.logger.Debug("request authenticated",
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.Duration("auth_duration", time.Since(start)),
			)
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeProblem(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeProblem(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.jwtValidator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			writeProblem(w, http.StatusUnauthorized, err.Error())
			return
		}

		userCtx, active := m.resolveUser(r.Context(), claims)
		if !active {
			writeProblem(w, http.StatusForbidden, "user account is disabled")
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.String("user_id", userCtx.UserID),
			zap.String("role", string(userCtx.Role)),
			zap.String("mode", string(userCtx.Mode)),
			zap.Int("permissions", userCtx.Permissions.Len()),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// resolveUser builds the request's user context from the stored user. A missing user or
// a failed lookup resolves with no role, which grants the fallback role's defaults only.
func (m *Middleware) resolveUser(ctx context.Context, claims *Claims) (*UserContext, bool) {
	userCtx := &UserContext{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}

	var user *domain.User
	if m.users != nil {
		u, err := m.users.GetByID(ctx, claims.Subject)
		if err != nil {
			m.logger.Info("no stored user for token subject, using fallback role",
				zap.String("user_id", claims.Subject),
				zap.Error(err),
			)
		} else {
			user = u
		}
	}

	if user != nil {
		if !user.IsActive {
			return nil, false
		}
		userCtx.Role = user.Role
		if user.Email != "" {
			userCtx.Email = user.Email
		}
		if user.DisplayName != "" {
			userCtx.DisplayName = user.DisplayName
		}
	}

	subject := permission.SubjectFromUser(user)
	userCtx.Mode = m.resolver.Mode(subject)
	userCtx.Permissions = m.resolver.Resolve(subject)
	if userCtx.Role == "" {
		userCtx.Role = m.resolver.EffectiveRole("")
	}
	return userCtx, true
}

func (m *Middleware) systemUser() *UserContext {
	subject := permission.Subject{Role: domain.RoleAdmin}
	return &UserContext{
		UserID:      SystemUserID,
		Email:       "system@sitebook.local",
		DisplayName: "System",
		Role:        domain.RoleAdmin,
		Mode:        m.resolver.Mode(subject),
		Permissions: m.resolver.Resolve(subject),
		IsAPIKey:    true,
	}
}

// RequirePermission rejects callers whose effective set does not grant p
func (m *Middleware) RequirePermission(p domain.Permission) func(http.Handler) http.Handler {
	return m.RequireAccess(permission.Expression{Permission: p})
}

// RequireAccess rejects callers for whom expr does not hold
func (m *Middleware) RequireAccess(expr permission.Expression) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !userCtx.Check(expr) {
				m.logger.Info("access denied",
					zap.String("user_id", userCtx.UserID),
					zap.String("role", string(userCtx.Role)),
					zap.String("permission", string(expr.Permission)),
					zap.String("path", r.URL.Path),
				)
				writeProblem(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	errType := domain.ErrorTypeUnauthorized
	if status == http.StatusForbidden {
		errType = domain.ErrorTypeForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   errType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
