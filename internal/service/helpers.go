package service

import (
	"context"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
)

func paginated(data any, total int64, page, pageSize int) *domain.PaginatedResponse {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// actorID returns the caller's user id, or "" outside an authenticated request
func actorID(ctx context.Context) string {
	if userCtx, ok := auth.FromContext(ctx); ok {
		return userCtx.UserID
	}
	return ""
}
