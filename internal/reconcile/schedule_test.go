package reconcile_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/reconcile"
)

func TestSchedule_SumsExactly(t *testing.T) {
	tests := []struct {
		name     string
		planned  string
		duration int
		scale    int32
		first    string
		last     string
	}{
		{"integer units with remainder", "10", 3, 0, "4", "3"},
		{"two decimals", "100", 3, 2, "33.34", "33.33"},
		{"even split", "90", 3, 2, "30", "30"},
		{"fewer units than days", "2", 5, 0, "1", "0"},
		{"planned finer than scale is rounded", "10.005", 2, 2, "5.01", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := activity(tt.planned, intPtr(tt.duration))

			drafts := reconcile.Schedule(a, 0, time.Time{}, tt.scale)

			require.Len(t, drafts, tt.duration)
			assertDecimal(t, a.PlannedUnits.Round(tt.scale).String(), reconcile.SumDrafts(drafts))
			assertDecimal(t, tt.first, drafts[0].Quantity)
			assertDecimal(t, tt.last, drafts[len(drafts)-1].Quantity)
			for _, d := range drafts {
				assert.Equal(t, domain.KPISourceBOQ, d.Source)
				assert.Equal(t, domain.KPIInputPlanned, d.InputType)
				assert.Equal(t, tt.duration, d.DaysCount)
				assert.Nil(t, d.ActivityDate)
				assert.False(t, d.Quantity.IsNegative())
			}
		})
	}
}

func TestSchedule_Dates(t *testing.T) {
	start := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)

	drafts := reconcile.Schedule(activity("4", nil), 4, start, 0)

	require.Len(t, drafts, 4)
	want := []string{"2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02"}
	for i, d := range drafts {
		require.NotNil(t, d.ActivityDate)
		assert.Equal(t, want[i], d.ActivityDate.Format("2006-01-02"))
	}
}

func TestSchedule_Degenerate(t *testing.T) {
	assert.Nil(t, reconcile.Schedule(activity("0", intPtr(3)), 3, time.Time{}, 2))
	assert.Nil(t, reconcile.Schedule(activity("10", nil), 0, time.Time{}, 2))
	assert.Nil(t, reconcile.Schedule(activity("10", intPtr(-1)), -1, time.Time{}, 2))
}

func TestSchedule_ClampsScale(t *testing.T) {
	drafts := reconcile.Schedule(activity("1", intPtr(3)), 0, time.Time{}, -4)

	require.Len(t, drafts, 3)
	assertDecimal(t, "1", reconcile.SumDrafts(drafts))
	assertDecimal(t, "1", drafts[0].Quantity)
	assertDecimal(t, "0", drafts[2].Quantity)
}

func TestActivityDate(t *testing.T) {
	d1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record domain.KPIRecord
		want   *time.Time
	}{
		{"activity date wins", domain.KPIRecord{ActivityDate: &d1, ActualDate: &d2, TargetDate: &d3}, &d1},
		{"actual date is first fallback", domain.KPIRecord{ActualDate: &d2, TargetDate: &d3}, &d2},
		{"target date is last fallback", domain.KPIRecord{TargetDate: &d3}, &d3},
		{"no dates", domain.KPIRecord{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reconcile.ActivityDate(tt.record)
			if tt.want == nil {
				assert.False(t, ok)
				assert.True(t, got.IsZero())
				return
			}
			assert.True(t, ok)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestHasConflictingDates(t *testing.T) {
	morning := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)
	nextDay := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	assert.False(t, reconcile.HasConflictingDates(domain.KPIRecord{}))
	assert.False(t, reconcile.HasConflictingDates(domain.KPIRecord{ActualDate: &morning}))
	assert.False(t, reconcile.HasConflictingDates(domain.KPIRecord{ActivityDate: &morning, TargetDate: &evening}))
	assert.True(t, reconcile.HasConflictingDates(domain.KPIRecord{ActivityDate: &morning, ActualDate: &nextDay}))
	assert.True(t, reconcile.HasConflictingDates(domain.KPIRecord{ActualDate: &morning, TargetDate: &nextDay}))
}
