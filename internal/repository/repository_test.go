package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

func TestProjectRepository_ListAndSearch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewProjectRepository(db)
	ctx := context.Background()

	testutil.CreateTestProject(t, db, "P-100")
	testutil.CreateTestProject(t, db, "P-200")
	onHold := &domain.Project{Code: "X_1", Name: "Harbour 50% wall", Status: domain.ProjectStatusOnHold}
	require.NoError(t, repo.Create(ctx, onHold))

	all, total, err := repo.List(ctx, repository.ProjectFilter{}, repository.SortConfig{Field: "code", Order: repository.SortOrderAsc}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "P-100", all[0].Code)

	status := domain.ProjectStatusActive
	active, total, err := repo.List(ctx, repository.ProjectFilter{Status: &status}, repository.DefaultSortConfig(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, active, 1, "page size limits the page, not the total")

	// wildcards in the search term are literal
	found, total, err := repo.List(ctx, repository.ProjectFilter{Search: "50%"}, repository.DefaultSortConfig(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "X_1", found[0].Code)

	found, _, err = repo.List(ctx, repository.ProjectFilter{Search: "p_"}, repository.DefaultSortConfig(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	codes, err := repo.ListCodesByStatus(ctx, domain.ProjectStatusActive)
	require.NoError(t, err)
	assert.Equal(t, []string{"P-100", "P-200"}, codes)

	exists, err := repo.ExistsByCode(ctx, "P-200")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetByCode(ctx, "P-999")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestBOQActivityRepository_KeyLookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBOQActivityRepository(db)
	ctx := context.Background()

	plain := testutil.CreateTestBOQActivity(t, db, "P-100", "Excavation", "100", testutil.IntPtr(10))
	zoned := &domain.BOQActivity{ProjectCode: "P-100", ActivityName: "Excavation", Zone: "Zone B", PlannedUnits: decimal.NewFromInt(40)}
	require.NoError(t, repo.Create(ctx, zoned))
	testutil.CreateTestBOQActivity(t, db, "P-200", "Excavation", "5", nil)

	got, err := repo.GetByKey(ctx, "P-100", "Excavation", "")
	require.NoError(t, err)
	assert.Equal(t, plain.ID, got.ID)

	got, err = repo.GetByKey(ctx, "P-100", "Excavation", "Zone B")
	require.NoError(t, err)
	assert.Equal(t, zoned.ID, got.ID)

	exists, err := repo.ExistsByKey(ctx, "P-100", "Excavation", "Zone B", zoned.ID)
	require.NoError(t, err)
	assert.False(t, exists, "the activity itself is excluded")

	exists, err = repo.ExistsByKey(ctx, "P-100", "Excavation", "Zone B", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)

	duplicate := &domain.BOQActivity{ProjectCode: "P-100", ActivityName: "Excavation", Zone: "Zone B"}
	assert.Error(t, repo.Create(ctx, duplicate), "project, zone and activity are unique together")

	list, total, err := repo.List(ctx, repository.BOQFilter{ProjectCode: "P-100"}, repository.SortConfig{Field: "zone", Order: repository.SortOrderAsc}, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "", list[0].Zone)

	byProject, err := repo.ListByProject(ctx, "P-200")
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.True(t, byProject[0].PlannedUnits.Equal(decimal.NewFromInt(5)))
	assert.Nil(t, byProject[0].CalendarDuration)
}

func TestKPIRecordRepository_Totals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewKPIRecordRepository(db)
	ctx := context.Background()
	day := testutil.Date(2026, time.March, 2)

	testutil.CreateTestKPIRecord(t, db, "P-100", "Excavation", domain.KPIInputPlanned, "10.25", day)
	testutil.CreateTestKPIRecord(t, db, "P-100", "Excavation", domain.KPIInputPlanned, "4.75", day.AddDate(0, 0, 1))
	testutil.CreateTestKPIRecord(t, db, "P-100", "Excavation", domain.KPIInputActual, "8", day)
	testutil.CreateTestKPIRecord(t, db, "P-100", "Backfill", domain.KPIInputPlanned, "99", day)

	total, err := repo.PlannedTotal(ctx, "P-100", "Excavation", "")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(15)), total.String())

	total, err = repo.PlannedTotal(ctx, "P-100", "Excavation", "Zone B")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	records, err := repo.ListForActivity(ctx, "P-100", "Excavation", "")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	actual := domain.KPIInputActual
	listed, count, err := repo.List(ctx, repository.KPIFilter{ProjectCode: "P-100", InputType: &actual}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, listed[0].Quantity.Equal(decimal.NewFromInt(8)))
}

func TestKPIRecordRepository_WarehouseBookkeeping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewKPIRecordRepository(db)
	ctx := context.Background()

	latest, err := repo.LatestActivityDate(ctx, "P-100", domain.KPISourceWarehouse)
	require.NoError(t, err)
	assert.Nil(t, latest)

	ref1, ref2 := "wh-1", "wh-2"
	d1, d2 := testutil.Date(2026, time.March, 1), testutil.Date(2026, time.March, 4)
	batch := []domain.KPIRecord{
		{ProjectFullCode: "P-100", ActivityName: "Excavation", Quantity: decimal.NewFromInt(3), InputType: domain.KPIInputActual, ActivityDate: &d1, Source: domain.KPISourceWarehouse, ExternalRef: &ref1},
		{ProjectFullCode: "P-100", ActivityName: "Excavation", Quantity: decimal.NewFromInt(4), InputType: domain.KPIInputActual, ActivityDate: &d2, Source: domain.KPISourceWarehouse, ExternalRef: &ref2},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))

	latest, err = repo.LatestActivityDate(ctx, "P-100", domain.KPISourceWarehouse)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(d2), latest.String())

	existing, err := repo.ExistingExternalRefs(ctx, []string{"wh-1", "wh-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"wh-1": {}}, existing)

	// a duplicate external ref fails the whole batch
	dup := []domain.KPIRecord{
		{ProjectFullCode: "P-100", ActivityName: "Excavation", Quantity: decimal.NewFromInt(1), InputType: domain.KPIInputActual, Source: domain.KPISourceWarehouse, ExternalRef: strPtr("wh-9")},
		{ProjectFullCode: "P-100", ActivityName: "Excavation", Quantity: decimal.NewFromInt(1), InputType: domain.KPIInputActual, Source: domain.KPISourceWarehouse, ExternalRef: strPtr("wh-1")},
	}
	assert.Error(t, repo.CreateBatch(ctx, dup))
	existing, err = repo.ExistingExternalRefs(ctx, []string{"wh-9"})
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestUserRepository_PermissionsAndAdmins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	testutil.CreateTestUser(t, db, "admin-1", domain.RoleAdmin)
	testutil.CreateTestUser(t, db, "admin-2", domain.RoleAdmin)
	testutil.CreateTestUser(t, db, "eng-1", domain.RoleEngineer)

	require.NoError(t, repo.UpdatePermissions(ctx, "eng-1", true, []string{"kpi.view", "boq.view"}))
	eng, err := repo.GetByID(ctx, "eng-1")
	require.NoError(t, err)
	assert.True(t, eng.CustomPermissionsEnabled)
	assert.Equal(t, []string{"kpi.view", "boq.view"}, eng.Permissions)

	require.NoError(t, repo.UpdatePermissions(ctx, "eng-1", false, nil))
	eng, err = repo.GetByID(ctx, "eng-1")
	require.NoError(t, err)
	assert.False(t, eng.CustomPermissionsEnabled)
	assert.Empty(t, eng.Permissions)

	assert.ErrorIs(t, repo.UpdatePermissions(ctx, "ghost", false, nil), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.UpdateRole(ctx, "ghost", domain.RoleViewer), gorm.ErrRecordNotFound)

	count, err := repo.CountActiveAdmins(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountActiveAdmins(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.UpdateRole(ctx, "admin-2", domain.RoleManager))
	count, err = repo.CountActiveAdmins(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, repo.Delete(ctx, "eng-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "eng-1"), gorm.ErrRecordNotFound)
}

func TestUserRepository_UpsertKeepsOverrides(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	testutil.CreateTestUser(t, db, "u-1", domain.RoleManager)
	require.NoError(t, repo.UpdatePermissions(ctx, "u-1", false, []string{"users.view"}))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, &domain.User{ID: "u-1", Email: "new@example.com", LastLoginAt: &now}))

	u, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, domain.RoleManager, u.Role)
	assert.Equal(t, []string{"users.view"}, u.Permissions)

	require.NoError(t, repo.Upsert(ctx, &domain.User{ID: "u-2", Email: "u2@example.com", Role: domain.RoleViewer, IsActive: true, Permissions: []string{}}))
	_, err = repo.GetByID(ctx, "u-2")
	assert.NoError(t, err)
}

func TestAuditLogRepository_Filter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewAuditLogRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*domain.AuditLog{
		{UserID: "u-1", Action: domain.AuditActionRoleChange, EntityType: "user", EntityID: "u-2", PerformedAt: base},
		{UserID: "u-1", Action: domain.AuditActionCreate, EntityType: "boq_activity", EntityID: "b-1", PerformedAt: base.Add(time.Hour)},
		{UserID: "u-3", Action: domain.AuditActionDelete, EntityType: "user", EntityID: "u-4", PerformedAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, repo.CreateBatch(ctx, entries))

	logs, total, err := repo.List(ctx, &repository.AuditLogFilter{EntityType: "user"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, domain.AuditActionDelete, logs[0].Action, "newest first")

	byUser, err := repo.ListByUser(ctx, "u-1", 10)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byEntity, err := repo.ListByEntity(ctx, "user", "u-2", 10)
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	assert.Equal(t, domain.AuditActionRoleChange, byEntity[0].Action)
}

func TestReportExportRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewReportExportRepository(db)
	ctx := context.Background()

	export := &domain.ReportExport{ProjectCode: "P-100", Kind: "kpi_summary", Filename: "p-100.csv", ContentType: "text/csv", Size: 42, StoragePath: "reports/P-100/a.csv"}
	require.NoError(t, repo.Create(ctx, export))

	got, err := repo.GetByID(ctx, export.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Size)

	list, err := repo.ListByProject(ctx, "P-100", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, repository.DefaultPageSize},
		{-3, 10, 1, 10},
		{2, 1000, 2, repository.MaxPageSize},
	}
	for _, tt := range tests {
		p, s := repository.NormalizePage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantSize, s)
	}
}

func strPtr(s string) *string {
	return &s
}

func TestKPIRecordRepository_CreatePlanned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewKPIRecordRepository(db)
	ctx := context.Background()
	day := testutil.Date(2026, time.March, 2)

	activity := testutil.CreateTestBOQActivity(t, db, "P-100", "Excavation", "100", nil)
	testutil.CreateTestKPIRecord(t, db, "P-100", "Excavation", domain.KPIInputPlanned, "60", day)

	planned := func(qty int64) []domain.KPIRecord {
		return []domain.KPIRecord{{
			ProjectFullCode: "P-100",
			ActivityName:    "Excavation",
			Quantity:        decimal.NewFromInt(qty),
			InputType:       domain.KPIInputPlanned,
			ActivityDate:    &day,
			Source:          domain.KPISourceManual,
		}}
	}

	t.Run("check sees the locked activity and committed total", func(t *testing.T) {
		records := planned(30)
		err := repo.CreatePlanned(ctx, activity.ID, records, func(a domain.BOQActivity, existing decimal.Decimal) error {
			assert.Equal(t, activity.ID, a.ID)
			assert.True(t, existing.Equal(decimal.NewFromInt(60)), existing.String())
			return nil
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, records[0].ID)
	})

	t.Run("a failing check stores nothing", func(t *testing.T) {
		rejected := errors.New("over the ceiling")
		err := repo.CreatePlanned(ctx, activity.ID, planned(20), func(_ domain.BOQActivity, existing decimal.Decimal) error {
			assert.True(t, existing.Equal(decimal.NewFromInt(90)), existing.String())
			return rejected
		})
		assert.ErrorIs(t, err, rejected)

		total, err := repo.PlannedTotal(ctx, "P-100", "Excavation", "")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(90)), total.String())
	})

	t.Run("unknown activity", func(t *testing.T) {
		err := repo.CreatePlanned(ctx, uuid.New(), planned(1), nil)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
