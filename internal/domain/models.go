package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns a new ID when none was supplied
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ProjectStatus represents the status of a project
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// IsValid checks if the ProjectStatus is a valid enum value
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// Project represents a construction project. Code is the business key that BOQ
// activities and KPI records refer to.
type Project struct {
	BaseModel
	Code        string        `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string        `gorm:"type:varchar(200);not null;index"`
	Description string        `gorm:"type:text"`
	Status      ProjectStatus `gorm:"type:varchar(50);not null;default:'planning';index"`
	StartDate   *time.Time    `gorm:"type:date;column:start_date"`
	EndDate     *time.Time    `gorm:"type:date;column:end_date"`
	CreatedBy   string        `gorm:"type:varchar(100);column:created_by"`
}

// BOQActivity is a planned unit of work within a project
type BOQActivity struct {
	BaseModel
	ProjectCode      string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_boq_project_zone_activity;column:project_code"`
	ActivityName     string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_boq_project_zone_activity;column:activity_name"`
	Zone             string          `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_boq_project_zone_activity"`
	Unit             string          `gorm:"type:varchar(20)"`
	PlannedUnits     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0;column:planned_units"`
	CalendarDuration *int            `gorm:"column:calendar_duration"`
}

// TableName overrides the default table name
func (BOQActivity) TableName() string {
	return "boq_activities"
}

// KPIInputType classifies a KPI record as target or performed work
type KPIInputType string

const (
	KPIInputPlanned KPIInputType = "Planned"
	KPIInputActual  KPIInputType = "Actual"
)

// IsValid checks if the KPIInputType is a valid enum value
func (t KPIInputType) IsValid() bool {
	return t == KPIInputPlanned || t == KPIInputActual
}

// KPISource records where a KPI record came from
type KPISource string

const (
	KPISourceManual    KPISource = "manual"
	KPISourceBOQ       KPISource = "BOQ"
	KPISourceWarehouse KPISource = "warehouse"
)

// KPIRecord is a single dated entry of planned or actual progress against a BOQ activity.
// ActualDate and TargetDate are legacy aliases of ActivityDate.
type KPIRecord struct {
	BaseModel
	ProjectFullCode string           `gorm:"type:varchar(50);not null;index:idx_kpi_project_activity;column:project_full_code"`
	ActivityName    string           `gorm:"type:varchar(200);not null;index:idx_kpi_project_activity;column:activity_name"`
	Section         string           `gorm:"type:varchar(100);not null;default:''"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	InputType       KPIInputType     `gorm:"type:varchar(20);not null;column:input_type;index"`
	ActivityDate    *time.Time       `gorm:"type:date;column:activity_date;index"`
	ActualDate      *time.Time       `gorm:"type:date;column:actual_date"`
	TargetDate      *time.Time       `gorm:"type:date;column:target_date"`
	Source          KPISource        `gorm:"type:varchar(20);not null;default:'manual'"`
	TotalPlanned    *decimal.Decimal `gorm:"type:decimal(18,4);column:total_planned"`
	DaysCount       *int             `gorm:"column:days_count"`
	ExternalRef     *string          `gorm:"type:varchar(100);uniqueIndex;column:external_ref"`
	RecordedBy      string           `gorm:"type:varchar(100);column:recorded_by"`
}

// TableName overrides the default table name
func (KPIRecord) TableName() string {
	return "kpi_records"
}

// User represents an application user as stored by the platform.
// ID is the subject claim of the access token.
type User struct {
	ID                       string     `gorm:"type:varchar(100);primaryKey" json:"id"`
	Email                    string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	DisplayName              string     `gorm:"type:varchar(200);column:display_name" json:"displayName"`
	Role                     Role       `gorm:"type:varchar(50);not null;default:'viewer';index" json:"role"`
	CustomPermissionsEnabled bool       `gorm:"not null;default:false;column:custom_permissions_enabled" json:"customPermissionsEnabled"`
	Permissions              []string   `gorm:"serializer:json;type:jsonb" json:"permissions"`
	IsActive                 bool       `gorm:"not null;default:true;column:is_active" json:"isActive"`
	LastLoginAt              *time.Time `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt                time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt                time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// AuditAction represents the type of audit action
type AuditAction string

const (
	AuditActionCreate           AuditAction = "create"
	AuditActionUpdate           AuditAction = "update"
	AuditActionDelete           AuditAction = "delete"
	AuditActionPermissionChange AuditAction = "permission_change"
	AuditActionRoleChange       AuditAction = "role_change"
	AuditActionExport           AuditAction = "export"
	AuditActionImport           AuditAction = "import"
	AuditActionAPICall          AuditAction = "api_call"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"`
	UserID      string      `gorm:"type:varchar(100);column:user_id;index"`
	UserEmail   string      `gorm:"type:varchar(255);column:user_email"`
	Action      AuditAction `gorm:"type:varchar(50);not null;index"`
	EntityType  string      `gorm:"type:varchar(50);not null;column:entity_type;index"`
	EntityID    string      `gorm:"type:varchar(100);column:entity_id"`
	EntityName  string      `gorm:"type:varchar(200);column:entity_name"`
	Details     string      `gorm:"type:jsonb"`
	IPAddress   string      `gorm:"type:varchar(64);column:ip_address"`
	RequestID   string      `gorm:"type:varchar(100);column:request_id"`
	PerformedAt time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP;column:performed_at;index"`
}

// BeforeCreate assigns a new ID when none was supplied and keeps Details valid JSON
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Details == "" {
		a.Details = "{}"
	}
	return nil
}

// ReportExport is a generated report stored in file storage
type ReportExport struct {
	BaseModel
	ProjectCode string `gorm:"type:varchar(50);not null;index;column:project_code"`
	Kind        string `gorm:"type:varchar(50);not null"`
	Filename    string `gorm:"type:varchar(255);not null"`
	ContentType string `gorm:"type:varchar(100);not null;column:content_type"`
	Size        int64  `gorm:"not null"`
	StoragePath string `gorm:"type:varchar(500);not null;uniqueIndex;column:storage_path"`
	CreatedBy   string `gorm:"type:varchar(100);column:created_by"`
}
