package reconcile

import (
	"time"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// ActivityDate returns the record's date using the legacy fallback order
// activityDate, actualDate, targetDate.
func ActivityDate(record domain.KPIRecord) (time.Time, bool) {
	for _, d := range []*time.Time{record.ActivityDate, record.ActualDate, record.TargetDate} {
		if d != nil {
			return *d, true
		}
	}
	return time.Time{}, false
}

// HasConflictingDates reports whether two or more populated date fields name
// different calendar days.
func HasConflictingDates(record domain.KPIRecord) bool {
	var first *time.Time
	for _, d := range []*time.Time{record.ActivityDate, record.ActualDate, record.TargetDate} {
		if d == nil {
			continue
		}
		if first == nil {
			first = d
			continue
		}
		if !sameDay(*first, *d) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
