package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Projects

type ProjectDTO struct {
	ID          uuid.UUID     `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	StartDate   string        `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate     string        `json:"endDate,omitempty"`   // YYYY-MM-DD
	CreatedBy   string        `json:"createdBy,omitempty"`
	CreatedAt   string        `json:"createdAt"` // ISO 8601
	UpdatedAt   string        `json:"updatedAt"` // ISO 8601
}

type CreateProjectRequest struct {
	Code        string        `json:"code" validate:"required,max=50"`
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description,omitempty" validate:"max=2000"`
	Status      ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	StartDate   string        `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string        `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type UpdateProjectRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description,omitempty" validate:"max=2000"`
	Status      ProjectStatus `json:"status" validate:"required,oneof=planning active on_hold completed cancelled"`
	StartDate   string        `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string        `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// BOQ activities

type BOQActivityDTO struct {
	ID               uuid.UUID       `json:"id"`
	ProjectCode      string          `json:"projectCode"`
	ActivityName     string          `json:"activityName"`
	Zone             string          `json:"zone,omitempty"`
	Unit             string          `json:"unit,omitempty"`
	PlannedUnits     decimal.Decimal `json:"plannedUnits"`
	CalendarDuration *int            `json:"calendarDuration,omitempty"`
	CreatedAt        string          `json:"createdAt"`
	UpdatedAt        string          `json:"updatedAt"`
}

// CreateBOQActivityRequest carries a new BOQ line. PlannedUnits must not be negative.
type CreateBOQActivityRequest struct {
	ProjectCode      string          `json:"projectCode" validate:"required,max=50"`
	ActivityName     string          `json:"activityName" validate:"required,max=200"`
	Zone             string          `json:"zone,omitempty" validate:"max=100"`
	Unit             string          `json:"unit,omitempty" validate:"max=20"`
	PlannedUnits     decimal.Decimal `json:"plannedUnits"`
	CalendarDuration *int            `json:"calendarDuration,omitempty" validate:"omitempty,gte=0,lte=3650"`
}

type UpdateBOQActivityRequest struct {
	ActivityName     string          `json:"activityName" validate:"required,max=200"`
	Zone             string          `json:"zone,omitempty" validate:"max=100"`
	Unit             string          `json:"unit,omitempty" validate:"max=20"`
	PlannedUnits     decimal.Decimal `json:"plannedUnits"`
	CalendarDuration *int            `json:"calendarDuration,omitempty" validate:"omitempty,gte=0,lte=3650"`
}

// DailyTargetDTO is the per-day planned quantity for a BOQ activity
type DailyTargetDTO struct {
	BOQActivityID uuid.UUID       `json:"boqActivityId"`
	PlannedUnits  decimal.Decimal `json:"plannedUnits"`
	DurationDays  int             `json:"durationDays"`
	DailyTarget   decimal.Decimal `json:"dailyTarget"`
}

// KPIDraftRequest asks for planned KPI drafts derived from a BOQ activity.
// Schedule expands the activity into one draft per day; Persist stores that schedule.
type KPIDraftRequest struct {
	Days      int    `json:"days" validate:"gte=0,lte=3650"`
	StartDate string `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Schedule  bool   `json:"schedule"`
	Persist   bool   `json:"persist"`
}

// KPI records

type KPIRecordDTO struct {
	ID              uuid.UUID        `json:"id"`
	ProjectFullCode string           `json:"projectFullCode"`
	ActivityName    string           `json:"activityName"`
	Section         string           `json:"section,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	InputType       KPIInputType     `json:"inputType"`
	ActivityDate    string           `json:"activityDate,omitempty"`
	Source          KPISource        `json:"source"`
	TotalPlanned    *decimal.Decimal `json:"totalPlanned,omitempty"`
	DaysCount       *int             `json:"daysCount,omitempty"`
	ExternalRef     string           `json:"externalRef,omitempty"`
	RecordedBy      string           `json:"recordedBy,omitempty"`
	CreatedAt       string           `json:"createdAt"`
}

// CreateKPIRecordRequest carries a single KPI entry. ActualDate and TargetDate are
// accepted for legacy clients and must agree with ActivityDate when several are set.
type CreateKPIRecordRequest struct {
	ProjectFullCode string          `json:"projectFullCode" validate:"required,max=50"`
	ActivityName    string          `json:"activityName" validate:"required,max=200"`
	Section         string          `json:"section,omitempty" validate:"max=100"`
	Quantity        decimal.Decimal `json:"quantity"`
	InputType       KPIInputType    `json:"inputType" validate:"required,oneof=Planned Actual"`
	ActivityDate    string          `json:"activityDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ActualDate      string          `json:"actualDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TargetDate      string          `json:"targetDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CreateKPIRecordResponse wraps the stored record with the ceiling warning, if any
type CreateKPIRecordResponse struct {
	Record  KPIRecordDTO `json:"record"`
	Warning string       `json:"warning,omitempty"`
}

// ValidateKPIRequest checks candidate quantities against a BOQ activity ceiling.
// When ExistingTotal is omitted the committed planned total is read from storage.
type ValidateKPIRequest struct {
	BOQActivityID uuid.UUID         `json:"boqActivityId" validate:"required"`
	Quantities    []decimal.Decimal `json:"quantities" validate:"required,min=1,max=1000"`
	ExistingTotal *decimal.Decimal  `json:"existingTotal,omitempty"`
}

// Users and permissions

type UpdateUserRoleRequest struct {
	Role Role `json:"role" validate:"required,max=50"`
}

type UpdateUserPermissionsRequest struct {
	CustomPermissionsEnabled bool     `json:"customPermissionsEnabled"`
	Permissions              []string `json:"permissions" validate:"max=200,dive,required,max=100"`
}

// UserPermissionsDTO describes a user's stored overrides together with the resolved set
type UserPermissionsDTO struct {
	UserID                   string   `json:"userId"`
	Role                     Role     `json:"role"`
	Mode                     string   `json:"mode"`
	CustomPermissionsEnabled bool     `json:"customPermissionsEnabled"`
	Permissions              []string `json:"permissions"`
	EffectivePermissions     []string `json:"effectivePermissions"`
}

// CurrentUserDTO is returned by /auth/me
type CurrentUserDTO struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName,omitempty"`
	Role        Role     `json:"role"`
	Mode        string   `json:"mode"`
	Permissions []string `json:"permissions"`
	IsAPIKey    bool     `json:"isApiKey,omitempty"`
}

// PermissionDTO is a single effective permission split into its parts
type PermissionDTO struct {
	Permission string `json:"permission"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// AccessCheckRequest is an access expression. Every supplied criterion must hold;
// an expression with no criteria is denied.
type AccessCheckRequest struct {
	Permission  string   `json:"permission,omitempty" validate:"max=100"`
	Permissions []string `json:"permissions,omitempty" validate:"max=200,dive,max=100"`
	RequireAll  bool     `json:"requireAll,omitempty"`
	Category    string   `json:"category,omitempty" validate:"max=50"`
	Action      string   `json:"action,omitempty" validate:"max=50"`
	Role        string   `json:"role,omitempty" validate:"max=50"`
}

type AccessCheckResponse struct {
	Allowed bool `json:"allowed"`
}

// RoleCatalogDTO lists a role's default permissions
type RoleCatalogDTO struct {
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
}

// PermissionCatalogDTO is the permission universe and the per-role defaults
type PermissionCatalogDTO struct {
	Permissions      []string         `json:"permissions"`
	Roles            []RoleCatalogDTO `json:"roles"`
	FallbackRole     Role             `json:"fallbackRole"`
	AdminSuperseding []string         `json:"adminSuperseding"`
}

// Audit and reports

type AuditLogDTO struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"userId,omitempty"`
	UserEmail   string      `json:"userEmail,omitempty"`
	Action      AuditAction `json:"action"`
	EntityType  string      `json:"entityType"`
	EntityID    string      `json:"entityId,omitempty"`
	EntityName  string      `json:"entityName,omitempty"`
	Details     string      `json:"details,omitempty"`
	IPAddress   string      `json:"ipAddress,omitempty"`
	RequestID   string      `json:"requestId,omitempty"`
	PerformedAt string      `json:"performedAt"`
}

type ReportExportDTO struct {
	ID          uuid.UUID `json:"id"`
	ProjectCode string    `json:"projectCode"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   string    `json:"createdAt"`
}
