// Package reconcile derives KPI targets from Bill-of-Quantities activities and
// compares recorded KPI progress against them.
//
// Every function in this package is pure: no I/O, no logging and no shared state.
// Malformed input degrades to zero quantities, "behind" status or an invalid
// ValidationResult instead of an error.
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// DivisionPrecision is the number of decimal places kept by every division.
const DivisionPrecision int32 = 6

var hundred = decimal.NewFromInt(100)

// Status classifies progress of an activity against its BOQ total
type Status string

const (
	StatusAhead   Status = "ahead"
	StatusOnTrack Status = "on_track"
	StatusBehind  Status = "behind"
)

var (
	aheadThreshold   = decimal.NewFromInt(100)
	onTrackThreshold = decimal.NewFromInt(80)
)

// KPIDraft is an unsaved planned KPI entry derived from a BOQ activity
type KPIDraft struct {
	ProjectFullCode string              `json:"projectFullCode"`
	ActivityName    string              `json:"activityName"`
	Section         string              `json:"section,omitempty"`
	Quantity        decimal.Decimal     `json:"quantity"`
	InputType       domain.KPIInputType `json:"inputType"`
	Source          domain.KPISource    `json:"source"`
	TotalPlanned    decimal.Decimal     `json:"totalPlanned"`
	DaysCount       int                 `json:"daysCount"`
	ActivityDate    *time.Time          `json:"activityDate,omitempty"`
}

// Record converts the draft into a KPIRecord ready to persist
func (d KPIDraft) Record(recordedBy string) domain.KPIRecord {
	totalPlanned := d.TotalPlanned
	daysCount := d.DaysCount
	return domain.KPIRecord{
		ProjectFullCode: d.ProjectFullCode,
		ActivityName:    d.ActivityName,
		Section:         d.Section,
		Quantity:        d.Quantity,
		InputType:       d.InputType,
		ActivityDate:    d.ActivityDate,
		Source:          d.Source,
		TotalPlanned:    &totalPlanned,
		DaysCount:       &daysCount,
		RecordedBy:      recordedBy,
	}
}

// Comparison is the planned-versus-actual view of one BOQ activity
type Comparison struct {
	ProjectCode        string          `json:"projectCode"`
	ActivityName       string          `json:"activityName"`
	Zone               string          `json:"zone,omitempty"`
	BOQPlanned         decimal.Decimal `json:"boqPlanned"`
	KPITotalPlanned    decimal.Decimal `json:"kpiTotalPlanned"`
	KPITotalActual     decimal.Decimal `json:"kpiTotalActual"`
	Variance           decimal.Decimal `json:"variance"`
	ProgressPercentage decimal.Decimal `json:"progressPercentage"`
	Status             Status          `json:"status"`
	// Ignored counts records whose input type is neither Planned nor Actual
	Ignored int `json:"ignored,omitempty"`
}

// ValidationResult is the outcome of checking a KPI quantity against the BOQ ceiling
type ValidationResult struct {
	Valid        bool            `json:"valid"`
	Message      string          `json:"message,omitempty"`
	NewTotal     decimal.Decimal `json:"newTotal"`
	PlannedUnits decimal.Decimal `json:"plannedUnits"`
}

// ResolveDuration returns the activity's calendar duration when positive, otherwise fallbackDays
func ResolveDuration(activity domain.BOQActivity, fallbackDays int) int {
	if activity.CalendarDuration != nil && *activity.CalendarDuration > 0 {
		return *activity.CalendarDuration
	}
	return fallbackDays
}

// DailyTarget returns plannedUnits spread evenly over the resolved duration.
// It returns zero when there is nothing planned or the duration is not positive.
func DailyTarget(activity domain.BOQActivity, fallbackDays int) decimal.Decimal {
	duration := ResolveDuration(activity, fallbackDays)
	if !activity.PlannedUnits.IsPositive() || duration <= 0 {
		return decimal.Zero
	}
	return activity.PlannedUnits.DivRound(decimal.NewFromInt(int64(duration)), DivisionPrecision)
}

// DraftFromBOQ builds a planned KPI draft carrying the activity's daily target and
// the BOQ provenance (total planned and day count).
func DraftFromBOQ(activity domain.BOQActivity, days int, startDate *time.Time) KPIDraft {
	return KPIDraft{
		ProjectFullCode: activity.ProjectCode,
		ActivityName:    activity.ActivityName,
		Section:         activity.Zone,
		Quantity:        DailyTarget(activity, days),
		InputType:       domain.KPIInputPlanned,
		Source:          domain.KPISourceBOQ,
		TotalPlanned:    activity.PlannedUnits,
		DaysCount:       days,
		ActivityDate:    startDate,
	}
}

// Compare sums the Planned and Actual records for an activity and classifies progress.
// The caller is expected to pass only records belonging to the activity.
func Compare(activity domain.BOQActivity, records []domain.KPIRecord) Comparison {
	planned, actual := decimal.Zero, decimal.Zero
	ignored := 0
	for i := range records {
		switch records[i].InputType {
		case domain.KPIInputPlanned:
			planned = planned.Add(records[i].Quantity)
		case domain.KPIInputActual:
			actual = actual.Add(records[i].Quantity)
		default:
			ignored++
		}
	}

	progress := Progress(actual, activity.PlannedUnits)
	return Comparison{
		ProjectCode:        activity.ProjectCode,
		ActivityName:       activity.ActivityName,
		Zone:               activity.Zone,
		BOQPlanned:         activity.PlannedUnits,
		KPITotalPlanned:    planned,
		KPITotalActual:     actual,
		Variance:           actual.Sub(activity.PlannedUnits),
		ProgressPercentage: progress,
		Status:             classify(progress, activity.PlannedUnits),
		Ignored:            ignored,
	}
}

// Progress returns actual as a percentage of planned, or zero when planned is not positive
func Progress(actual, planned decimal.Decimal) decimal.Decimal {
	if !planned.IsPositive() {
		return decimal.Zero
	}
	return actual.Mul(hundred).DivRound(planned, DivisionPrecision)
}

// ClassifyProgress maps a progress percentage to a status, first match wins:
// >= 100 ahead, >= 80 on_track, otherwise behind.
func ClassifyProgress(pct decimal.Decimal) Status {
	switch {
	case pct.GreaterThanOrEqual(aheadThreshold):
		return StatusAhead
	case pct.GreaterThanOrEqual(onTrackThreshold):
		return StatusOnTrack
	default:
		return StatusBehind
	}
}

// classify applies the zero-plan guard: nothing planned is always behind.
func classify(pct, planned decimal.Decimal) Status {
	if !planned.IsPositive() {
		return StatusBehind
	}
	return ClassifyProgress(pct)
}

// Validate checks whether adding newQuantity to the committed planned total would
// exceed the activity's planned units. Reaching the ceiling exactly is valid.
func Validate(activity domain.BOQActivity, newQuantity, existingTotal decimal.Decimal) ValidationResult {
	newTotal := existingTotal.Add(newQuantity)
	result := ValidationResult{
		Valid:        true,
		NewTotal:     newTotal,
		PlannedUnits: activity.PlannedUnits,
	}
	if newTotal.GreaterThan(activity.PlannedUnits) {
		result.Valid = false
		result.Message = fmt.Sprintf(
			"KPI planned total %s exceeds BOQ planned units %s for activity %q (existing %s + new %s, over by %s)",
			newTotal.String(), activity.PlannedUnits.String(), activity.ActivityName,
			existingTotal.String(), newQuantity.String(), newTotal.Sub(activity.PlannedUnits).String(),
		)
	}
	return result
}
