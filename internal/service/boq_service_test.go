package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

func TestBOQService_Create(t *testing.T) {
	svc := newTestServices(t, testKPIConfig())
	ctx := svc.asUser("eng-1", domain.RoleEngineer)
	testutil.CreateTestProject(t, svc.db, "P-1")

	req := &domain.CreateBOQActivityRequest{
		ProjectCode:  "P-1",
		ActivityName: "Concrete pour",
		Zone:         "Z1",
		Unit:         "m3",
		PlannedUnits: testutil.Dec(t, "120.5"),
	}
	dto, err := svc.boq.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Z1", dto.Zone)
	assert.True(t, dto.PlannedUnits.Equal(testutil.Dec(t, "120.5")))

	tests := []struct {
		name    string
		mutate  func(r domain.CreateBOQActivityRequest) domain.CreateBOQActivityRequest
		wantErr error
	}{
		{
			name: "same key conflicts",
			mutate: func(r domain.CreateBOQActivityRequest) domain.CreateBOQActivityRequest {
				return r
			},
			wantErr: service.ErrConflict,
		},
		{
			name: "negative planned units",
			mutate: func(r domain.CreateBOQActivityRequest) domain.CreateBOQActivityRequest {
				r.Zone = "Z9"
				r.PlannedUnits = testutil.Dec(t, "-1")
				return r
			},
			wantErr: service.ErrInvalidInput,
		},
		{
			name: "unknown project",
			mutate: func(r domain.CreateBOQActivityRequest) domain.CreateBOQActivityRequest {
				r.ProjectCode = "P-404"
				return r
			},
			wantErr: service.ErrNotFound,
		},
		{
			name: "other zone is a separate activity",
			mutate: func(r domain.CreateBOQActivityRequest) domain.CreateBOQActivityRequest {
				r.Zone = "Z2"
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.mutate(*req)
			_, err := svc.boq.Create(ctx, &r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBOQService_DailyTarget(t *testing.T) {
	svc := newTestServices(t, testKPIConfig())
	ctx := svc.asUser("eng-1", domain.RoleEngineer)
	testutil.CreateTestProject(t, svc.db, "P-1")
	withDuration := testutil.CreateTestBOQActivity(t, svc.db, "P-1", "Formwork", "100", testutil.IntPtr(4))
	withoutDuration := testutil.CreateTestBOQActivity(t, svc.db, "P-1", "Rebar", "100", nil)

	got, err := svc.boq.DailyTarget(ctx, withDuration.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 4, got.DurationDays, "activity duration wins over the requested days")
	assert.True(t, got.DailyTarget.Equal(testutil.Dec(t, "25")))

	got, err = svc.boq.DailyTarget(ctx, withoutDuration.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, got.DurationDays, "configured default")
	assert.True(t, got.DailyTarget.Equal(testutil.Dec(t, "10")))

	got, err = svc.boq.DailyTarget(ctx, withoutDuration.ID, 8)
	require.NoError(t, err)
	assert.True(t, got.DailyTarget.Equal(testutil.Dec(t, "12.5")))
}

func TestBOQService_KPIDrafts(t *testing.T) {
	svc := newTestServices(t, testKPIConfig())
	ctx := svc.asUser("eng-1", domain.RoleEngineer)
	testutil.CreateTestProject(t, svc.db, "P-1")
	activity := testutil.CreateTestBOQActivity(t, svc.db, "P-1", "Backfill", "10", testutil.IntPtr(3))

	t.Run("preview returns one draft", func(t *testing.T) {
		res, err := svc.boq.KPIDrafts(ctx, activity.ID, &domain.KPIDraftRequest{Days: 3})
		require.NoError(t, err)
		require.Len(t, res.Drafts, 1)
		assert.Equal(t, domain.KPISourceBOQ, res.Drafts[0].Source)
		assert.True(t, res.Drafts[0].TotalPlanned.Equal(testutil.Dec(t, "10")))
		assert.Equal(t, 0, res.Persisted)
	})

	t.Run("schedule preview sums to the total", func(t *testing.T) {
		res, err := svc.boq.KPIDrafts(ctx, activity.ID, &domain.KPIDraftRequest{Schedule: true, StartDate: "2026-03-02"})
		require.NoError(t, err)
		require.Len(t, res.Drafts, 3)
		assert.True(t, res.Drafts[0].Quantity.Equal(testutil.Dec(t, "3.34")))
		assert.True(t, res.Drafts[2].Quantity.Equal(testutil.Dec(t, "3.33")))
		assert.True(t, res.Total.Equal(testutil.Dec(t, "10")))
		assert.Equal(t, 0, res.Persisted)
	})

	t.Run("persist stores the schedule", func(t *testing.T) {
		res, err := svc.boq.KPIDrafts(ctx, activity.ID, &domain.KPIDraftRequest{Persist: true, StartDate: "2026-03-02"})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Persisted)

		cmp, err := svc.boq.Comparison(ctx, activity.ID)
		require.NoError(t, err)
		assert.True(t, cmp.KPITotalPlanned.Equal(testutil.Dec(t, "10")))
		assert.True(t, cmp.KPITotalActual.IsZero())
	})

	t.Run("second persist exceeds the ceiling", func(t *testing.T) {
		_, err := svc.boq.KPIDrafts(ctx, activity.ID, &domain.KPIDraftRequest{Persist: true, StartDate: "2026-04-01"})
		assert.ErrorIs(t, err, service.ErrBOQCeilingExceeded)
	})
}

func TestBOQService_KPIDraftsWarnWhenNotEnforced(t *testing.T) {
	cfg := testKPIConfig()
	cfg.EnforceBOQCeiling = false
	svc := newTestServices(t, cfg)
	ctx := svc.asUser("eng-1", domain.RoleEngineer)
	testutil.CreateTestProject(t, svc.db, "P-1")
	activity := testutil.CreateTestBOQActivity(t, svc.db, "P-1", "Backfill", "10", testutil.IntPtr(2))
	testutil.CreateTestKPIRecord(t, svc.db, "P-1", "Backfill", domain.KPIInputPlanned, "1", testutil.Date(2026, 3, 1))

	res, err := svc.boq.KPIDrafts(ctx, activity.ID, &domain.KPIDraftRequest{Persist: true, StartDate: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Persisted)
	assert.NotEmpty(t, res.Warning)
}

func TestBOQService_UpdateAndDelete(t *testing.T) {
	svc := newTestServices(t, testKPIConfig())
	ctx := svc.asUser("mgr-1", domain.RoleManager)
	testutil.CreateTestProject(t, svc.db, "P-1")
	activity := testutil.CreateTestBOQActivity(t, svc.db, "P-1", "Piling", "40", nil)
	empty := testutil.CreateTestBOQActivity(t, svc.db, "P-1", "Survey", "5", nil)
	testutil.CreateTestKPIRecord(t, svc.db, "P-1", "Piling", domain.KPIInputActual, "12", testutil.Date(2026, 3, 1))

	_, err := svc.boq.Update(ctx, activity.ID, &domain.UpdateBOQActivityRequest{ActivityName: "Piles", PlannedUnits: testutil.Dec(t, "40")})
	assert.ErrorIs(t, err, service.ErrConflict, "rename would orphan KPI records")

	updated, err := svc.boq.Update(ctx, activity.ID, &domain.UpdateBOQActivityRequest{ActivityName: "Piling", Unit: "pcs", PlannedUnits: testutil.Dec(t, "45")})
	require.NoError(t, err)
	assert.True(t, updated.PlannedUnits.Equal(testutil.Dec(t, "45")))

	_, err = svc.boq.Update(ctx, empty.ID, &domain.UpdateBOQActivityRequest{ActivityName: "Piling", PlannedUnits: testutil.Dec(t, "5")})
	assert.ErrorIs(t, err, service.ErrConflict, "key taken by another activity")

	assert.ErrorIs(t, svc.boq.Delete(ctx, activity.ID, false), service.ErrConflict)
	require.NoError(t, svc.boq.Delete(ctx, activity.ID, true))

	_, err = svc.boq.GetByID(ctx, activity.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	page, err := svc.kpi.List(ctx, repository.KPIFilter{ProjectCode: "P-1"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
}
