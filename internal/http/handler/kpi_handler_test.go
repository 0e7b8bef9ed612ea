package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/reconcile"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

func TestKPIHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestProject(t, env.db, "PRJ-1")
	testutil.CreateTestBOQActivity(t, env.db, "PRJ-1", "Excavation", "100", nil)

	planned := func(qty string) domain.CreateKPIRecordRequest {
		return domain.CreateKPIRecordRequest{
			ProjectFullCode: "PRJ-1",
			ActivityName:    "Excavation",
			Quantity:        decimal.RequireFromString(qty),
			InputType:       domain.KPIInputPlanned,
			ActivityDate:    "2024-03-01",
		}
	}

	t.Run("planned within the ceiling", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi", planned("60"))
		requireStatus(t, rr, http.StatusCreated)
		resp := decode[domain.CreateKPIRecordResponse](t, rr)
		assert.Empty(t, resp.Warning)
		assert.Equal(t, domain.KPISourceManual, resp.Record.Source)
		assert.Equal(t, "2024-03-01", resp.Record.ActivityDate)
		assert.Equal(t, "admin-1", resp.Record.RecordedBy)
	})

	t.Run("planned over the ceiling is refused", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi", planned("40.01"))
		apiErr := requireProblem(t, rr, http.StatusUnprocessableEntity, domain.ErrorTypeUnprocessable)
		assert.Contains(t, apiErr.Detail, "100")
	})

	t.Run("planned up to the ceiling exactly", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi", planned("40"))
		requireStatus(t, rr, http.StatusCreated)
	})

	t.Run("planned without a BOQ activity", func(t *testing.T) {
		req := planned("1")
		req.ActivityName = "Drainage"
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireProblem(t, rr, http.StatusNotFound, domain.ErrorTypeNotFound)
	})

	t.Run("planned in another zone does not match", func(t *testing.T) {
		req := planned("1")
		req.Section = "North"
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireProblem(t, rr, http.StatusNotFound, domain.ErrorTypeNotFound)
	})

	t.Run("actual is not capped", func(t *testing.T) {
		req := planned("500")
		req.InputType = domain.KPIInputActual
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireStatus(t, rr, http.StatusCreated)
	})

	t.Run("actual needs an existing project", func(t *testing.T) {
		req := planned("5")
		req.InputType = domain.KPIInputActual
		req.ProjectFullCode = "NOPE"
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireProblem(t, rr, http.StatusNotFound, domain.ErrorTypeNotFound)
	})

	t.Run("legacy date fills the activity date", func(t *testing.T) {
		req := planned("0")
		req.InputType = domain.KPIInputActual
		req.ActivityDate = ""
		req.TargetDate = "2024-04-02"
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireStatus(t, rr, http.StatusCreated)
		assert.Equal(t, "2024-04-02", decode[domain.CreateKPIRecordResponse](t, rr).Record.ActivityDate)
	})

	t.Run("conflicting dates", func(t *testing.T) {
		req := planned("1")
		req.InputType = domain.KPIInputActual
		req.ActualDate = "2024-03-02"
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeBadRequest)
	})

	t.Run("negative quantity", func(t *testing.T) {
		req := planned("-1")
		req.InputType = domain.KPIInputActual
		rr := env.do(t, http.MethodPost, "/kpi", req)
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeBadRequest)
	})

	t.Run("unknown input type", func(t *testing.T) {
		req := planned("1")
		req.InputType = "Forecast"
		rr := env.do(t, http.MethodPost, "/kpi", req)
		apiErr := requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeValidation)
		assert.Contains(t, apiErr.Errors, "inputType")
	})
}

func TestKPIHandler_GetListDelete(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestProject(t, env.db, "PRJ-1")
	testutil.CreateTestKPIRecord(t, env.db, "PRJ-1", "Excavation", domain.KPIInputPlanned, "10", testutil.Date(2024, time.March, 1))
	testutil.CreateTestKPIRecord(t, env.db, "PRJ-1", "Excavation", domain.KPIInputActual, "8", testutil.Date(2024, time.March, 2))
	last := testutil.CreateTestKPIRecord(t, env.db, "PRJ-1", "Formwork", domain.KPIInputActual, "3", testutil.Date(2024, time.March, 5))

	t.Run("filter by input type", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/kpi?projectCode=PRJ-1&inputType=Actual", nil)
		requireStatus(t, rr, http.StatusOK)
		result := decode[page[domain.KPIRecordDTO]](t, rr)
		assert.Equal(t, int64(2), result.Total)
		require.Len(t, result.Data, 2)
		assert.Equal(t, "2024-03-05", result.Data[0].ActivityDate, "newest first")
	})

	t.Run("filter by date range", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/kpi?from=2024-03-02&to=2024-03-04", nil)
		requireStatus(t, rr, http.StatusOK)
		result := decode[page[domain.KPIRecordDTO]](t, rr)
		require.Len(t, result.Data, 1)
		assert.Equal(t, "Excavation", result.Data[0].ActivityName)
	})

	t.Run("filter by activity", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/kpi?activityName=Excavation", nil)
		requireStatus(t, rr, http.StatusOK)
		assert.Equal(t, int64(2), decode[page[domain.KPIRecordDTO]](t, rr).Total)
	})

	t.Run("bad input type", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/kpi?inputType=planned", nil)
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeBadRequest)
	})

	t.Run("bad date", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/kpi?from=March", nil)
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeBadRequest)
	})

	t.Run("get and delete", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/kpi/"+last.ID.String(), nil)
		requireStatus(t, rr, http.StatusOK)
		assert.Equal(t, "Formwork", decode[domain.KPIRecordDTO](t, rr).ActivityName)

		rr = env.do(t, http.MethodDelete, "/kpi/"+last.ID.String(), nil)
		requireStatus(t, rr, http.StatusNoContent)

		rr = env.do(t, http.MethodDelete, "/kpi/"+last.ID.String(), nil)
		requireProblem(t, rr, http.StatusNotFound, domain.ErrorTypeNotFound)
	})
}

func TestKPIHandler_Validate(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestProject(t, env.db, "PRJ-1")
	activity := testutil.CreateTestBOQActivity(t, env.db, "PRJ-1", "Excavation", "100", nil)
	testutil.CreateTestKPIRecord(t, env.db, "PRJ-1", "Excavation", domain.KPIInputPlanned, "50", testutil.Date(2024, time.March, 1))

	quantities := func(values ...string) []decimal.Decimal {
		out := make([]decimal.Decimal, len(values))
		for i, v := range values {
			out[i] = decimal.RequireFromString(v)
		}
		return out
	}

	t.Run("stored planned total is the starting point", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi/validate", domain.ValidateKPIRequest{
			BOQActivityID: activity.ID,
			Quantities:    quantities("30", "30", "20"),
		})
		requireStatus(t, rr, http.StatusOK)

		result := decode[reconcile.BatchResult](t, rr)
		assert.False(t, result.Valid)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, 1, result.Violations[0].Index)
		assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(100)))
	})

	t.Run("explicit existing total", func(t *testing.T) {
		zero := decimal.Zero
		rr := env.do(t, http.MethodPost, "/kpi/validate", domain.ValidateKPIRequest{
			BOQActivityID: activity.ID,
			Quantities:    quantities("30", "30", "20"),
			ExistingTotal: &zero,
		})
		requireStatus(t, rr, http.StatusOK)
		result := decode[reconcile.BatchResult](t, rr)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Violations)
	})

	t.Run("nothing stored by validation", func(t *testing.T) {
		var count int64
		require.NoError(t, env.db.Model(&domain.KPIRecord{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown activity", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi/validate", domain.ValidateKPIRequest{
			BOQActivityID: uuid.New(),
			Quantities:    quantities("1"),
		})
		requireProblem(t, rr, http.StatusNotFound, domain.ErrorTypeNotFound)
	})

	t.Run("negative quantity", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi/validate", domain.ValidateKPIRequest{
			BOQActivityID: activity.ID,
			Quantities:    quantities("1", "-1"),
		})
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeBadRequest)
	})

	t.Run("quantities required", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/kpi/validate", domain.ValidateKPIRequest{BOQActivityID: activity.ID})
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeValidation)
	})
}
