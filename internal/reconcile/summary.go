package reconcile

import "github.com/shopspring/decimal"

// ProjectSummary rolls comparisons up to project level
type ProjectSummary struct {
	Activities         int             `json:"activities"`
	BOQPlanned         decimal.Decimal `json:"boqPlanned"`
	KPITotalPlanned    decimal.Decimal `json:"kpiTotalPlanned"`
	KPITotalActual     decimal.Decimal `json:"kpiTotalActual"`
	Variance           decimal.Decimal `json:"variance"`
	ProgressPercentage decimal.Decimal `json:"progressPercentage"`
	Status             Status          `json:"status"`
	Ahead              int             `json:"ahead"`
	OnTrack            int             `json:"onTrack"`
	Behind             int             `json:"behind"`
}

// Summarize totals the comparisons and classifies the project with the same
// thresholds and zero-plan guard as Compare.
func Summarize(comparisons []Comparison) ProjectSummary {
	s := ProjectSummary{
		Activities:      len(comparisons),
		BOQPlanned:      decimal.Zero,
		KPITotalPlanned: decimal.Zero,
		KPITotalActual:  decimal.Zero,
	}
	for _, c := range comparisons {
		s.BOQPlanned = s.BOQPlanned.Add(c.BOQPlanned)
		s.KPITotalPlanned = s.KPITotalPlanned.Add(c.KPITotalPlanned)
		s.KPITotalActual = s.KPITotalActual.Add(c.KPITotalActual)
		switch c.Status {
		case StatusAhead:
			s.Ahead++
		case StatusOnTrack:
			s.OnTrack++
		default:
			s.Behind++
		}
	}
	s.Variance = s.KPITotalActual.Sub(s.BOQPlanned)
	s.ProgressPercentage = Progress(s.KPITotalActual, s.BOQPlanned)
	s.Status = classify(s.ProgressPercentage, s.BOQPlanned)
	return s
}
