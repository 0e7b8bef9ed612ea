package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// Violation identifies a rejected quantity in a batch
type Violation struct {
	Index    int             `json:"index"`
	Quantity decimal.Decimal `json:"quantity"`
	Message  string          `json:"message"`
}

// BatchResult aggregates Validate over a sequence of quantities
type BatchResult struct {
	Valid      bool               `json:"valid"`
	Results    []ValidationResult `json:"results"`
	Violations []Violation        `json:"violations,omitempty"`
	FinalTotal decimal.Decimal    `json:"finalTotal"`
}

// ValidateBatch validates quantities in order as if each were committed after the
// previous one. Rejected quantities are not added to the running total, so one
// oversized entry does not cascade into the rest of the batch.
func ValidateBatch(activity domain.BOQActivity, existingTotal decimal.Decimal, quantities []decimal.Decimal) BatchResult {
	batch := BatchResult{
		Valid:      true,
		Results:    make([]ValidationResult, 0, len(quantities)),
		FinalTotal: existingTotal,
	}
	running := existingTotal
	for i, q := range quantities {
		res := Validate(activity, q, running)
		batch.Results = append(batch.Results, res)
		if !res.Valid {
			batch.Valid = false
			batch.Violations = append(batch.Violations, Violation{Index: i, Quantity: q, Message: res.Message})
			continue
		}
		running = res.NewTotal
	}
	batch.FinalTotal = running
	return batch
}
