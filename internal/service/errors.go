package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrInvalidRole is returned when a role is not defined in the permission catalog
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidPermission is returned when a permission is not defined in the permission catalog
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrCannotRemoveLastAdmin is returned when a change would leave no active admin
	ErrCannotRemoveLastAdmin = errors.New("cannot remove the last active admin")

	// ErrCannotDeleteSelf is returned when a user tries to delete their own account
	ErrCannotDeleteSelf = errors.New("cannot delete your own account")

	// ErrBOQCeilingExceeded is returned when planned KPI quantities would exceed the BOQ total
	ErrBOQCeilingExceeded = errors.New("planned quantity exceeds BOQ total")

	// ErrConflictingDates is returned when a KPI record's legacy date fields disagree
	ErrConflictingDates = errors.New("activity, actual and target dates disagree")

	// ErrWarehouseDisabled is returned when a sync is requested without a warehouse connection
	ErrWarehouseDisabled = errors.New("data warehouse is not enabled")
)

// wrapNotFound maps gorm.ErrRecordNotFound to ErrNotFound naming what was missing;
// other errors are returned unchanged
func wrapNotFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
