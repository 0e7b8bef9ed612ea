package reconcile

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// MaxScheduleScale bounds the decimal scale used when splitting quantities
const MaxScheduleScale int32 = 6

// Schedule expands an activity into one planned draft per day over the resolved
// duration. Quantities are multiples of 10^-scale and sum exactly to plannedUnits
// rounded to that scale; leftover units go to the earliest days. A zero start
// leaves the drafts undated.
func Schedule(activity domain.BOQActivity, days int, start time.Time, scale int32) []KPIDraft {
	duration := ResolveDuration(activity, days)
	if !activity.PlannedUnits.IsPositive() || duration <= 0 {
		return nil
	}
	if scale < 0 {
		scale = 0
	}
	if scale > MaxScheduleScale {
		scale = MaxScheduleScale
	}

	units := activity.PlannedUnits.Round(scale).Shift(scale).BigInt()
	base, rem := new(big.Int).QuoRem(units, big.NewInt(int64(duration)), new(big.Int))
	extra := int(rem.Int64())

	baseQty := decimal.NewFromBigInt(base, -scale)
	step := decimal.New(1, -scale)

	drafts := make([]KPIDraft, duration)
	for i := 0; i < duration; i++ {
		qty := baseQty
		if i < extra {
			qty = qty.Add(step)
		}
		var date *time.Time
		if !start.IsZero() {
			d := start.AddDate(0, 0, i)
			date = &d
		}
		drafts[i] = KPIDraft{
			ProjectFullCode: activity.ProjectCode,
			ActivityName:    activity.ActivityName,
			Section:         activity.Zone,
			Quantity:        qty,
			InputType:       domain.KPIInputPlanned,
			Source:          domain.KPISourceBOQ,
			TotalPlanned:    activity.PlannedUnits,
			DaysCount:       duration,
			ActivityDate:    date,
		}
	}
	return drafts
}

// SumDrafts adds up draft quantities
func SumDrafts(drafts []KPIDraft) decimal.Decimal {
	total := decimal.Zero
	for _, d := range drafts {
		total = total.Add(d.Quantity)
	}
	return total
}
