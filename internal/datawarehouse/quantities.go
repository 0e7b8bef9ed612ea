package datawarehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActualQuantity is one site diary line: work actually performed on a day
type ActualQuantity struct {
	EntryID      string
	ProjectCode  string
	ActivityName string
	Section      string
	Quantity     decimal.Decimal
	EntryDate    time.Time
}

const actualQuantitiesQuery = `SELECT entry_id, project_code, activity_name, section, quantity, entry_date
FROM dbo.site_diary_quantities
WHERE project_code = @project AND entry_date >= @since
ORDER BY entry_date, entry_id`

// GetActualQuantities returns the diary lines of a project dated on or after since
func (c *Client) GetActualQuantities(ctx context.Context, projectCode string, since time.Time) ([]ActualQuantity, error) {
	rows, err := c.ExecuteQuery(ctx, actualQuantitiesQuery,
		sql.Named("project", projectCode),
		sql.Named("since", since.UTC().Format("2006-01-02")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query actual quantities: %w", err)
	}

	result := make([]ActualQuantity, 0, len(rows))
	for i, row := range rows {
		q, err := actualFromRow(row)
		if err != nil {
			c.logger.Warn("Skipping malformed site diary row",
				zap.Int("row", i),
				zap.String("project_code", projectCode),
				zap.Error(err),
			)
			continue
		}
		result = append(result, q)
	}
	return result, nil
}

func actualFromRow(row map[string]any) (ActualQuantity, error) {
	var q ActualQuantity
	var err error

	if q.EntryID, err = stringValue(row["entry_id"]); err != nil || q.EntryID == "" {
		return q, fmt.Errorf("entry_id: missing or invalid")
	}
	if q.ProjectCode, err = stringValue(row["project_code"]); err != nil {
		return q, fmt.Errorf("project_code: %w", err)
	}
	if q.ActivityName, err = stringValue(row["activity_name"]); err != nil || q.ActivityName == "" {
		return q, fmt.Errorf("activity_name: missing or invalid")
	}
	if q.Section, err = stringValue(row["section"]); err != nil {
		return q, fmt.Errorf("section: %w", err)
	}
	if q.Quantity, err = decimalValue(row["quantity"]); err != nil {
		return q, fmt.Errorf("quantity: %w", err)
	}
	if q.Quantity.IsNegative() {
		return q, fmt.Errorf("quantity: negative value %s", q.Quantity)
	}
	if q.EntryDate, err = dateValue(row["entry_date"]); err != nil {
		return q, fmt.Errorf("entry_date: %w", err)
	}
	return q, nil
}

func stringValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	case int64:
		return fmt.Sprintf("%d", x), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

// decimalValue accepts the representations drivers use for DECIMAL columns
func decimalValue(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case []byte:
		return decimal.NewFromString(string(x))
	case string:
		return decimal.NewFromString(x)
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected type %T", v)
	}
}

func dateValue(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		return parseDate(x)
	case []byte:
		return parseDate(string(x))
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}
