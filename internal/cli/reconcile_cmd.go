package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/mapper"
	"github.com/sitebook/sitebook-api/internal/reconcile"
)

const (
	defaultDurationDays  = 30
	defaultScheduleScale = 2

	// maxDurationDays matches the bound the API puts on durations
	maxDurationDays = 3650
)

// ErrCeilingExceeded is returned by "reconcile validate" when any quantity would
// push the planned total past the BOQ planned units
var ErrCeilingExceeded = errors.New("BOQ ceiling exceeded")

// reconcileInput is the JSON document read by the reconcile commands
type reconcileInput struct {
	Activities []activityInput `json:"activities" validate:"dive"`
	Records    []recordInput   `json:"records"`
}

type activityInput struct {
	ProjectCode      string          `json:"projectCode"`
	ActivityName     string          `json:"activityName"`
	Zone             string          `json:"zone"`
	Unit             string          `json:"unit"`
	PlannedUnits     decimal.Decimal `json:"plannedUnits"`
	CalendarDuration *int            `json:"calendarDuration" validate:"omitempty,gte=0,lte=3650"`
}

func (a activityInput) toDomain() domain.BOQActivity {
	return domain.BOQActivity{
		ProjectCode:      a.ProjectCode,
		ActivityName:     a.ActivityName,
		Zone:             a.Zone,
		Unit:             a.Unit,
		PlannedUnits:     a.PlannedUnits,
		CalendarDuration: a.CalendarDuration,
	}
}

type recordInput struct {
	ActivityName string              `json:"activityName"`
	Section      string              `json:"section"`
	Quantity     decimal.Decimal     `json:"quantity"`
	InputType    domain.KPIInputType `json:"inputType"`
}

// recordsFor returns the records that correlate to activity by name and zone
func (in reconcileInput) recordsFor(activity domain.BOQActivity) []domain.KPIRecord {
	var records []domain.KPIRecord
	for _, r := range in.Records {
		if r.ActivityName != activity.ActivityName || r.Section != activity.Zone {
			continue
		}
		records = append(records, domain.KPIRecord{
			ProjectFullCode: activity.ProjectCode,
			ActivityName:    r.ActivityName,
			Section:         r.Section,
			Quantity:        r.Quantity,
			InputType:       r.InputType,
		})
	}
	return records
}

func checkDays(days int) error {
	if days < 0 {
		return errors.New("--days must not be negative")
	}
	if days > maxDurationDays {
		return fmt.Errorf("--days must not exceed %d", maxDurationDays)
	}
	return nil
}

// activitySelector picks one activity out of a multi-activity input
type activitySelector struct {
	name string
	zone string
}

func (s *activitySelector) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.name, "activity", "", "Activity name, required when the input holds several activities")
	cmd.Flags().StringVar(&s.zone, "zone", "", "Zone of the selected activity")
}

func (s *activitySelector) pick(in reconcileInput) (domain.BOQActivity, error) {
	if len(in.Activities) == 0 {
		return domain.BOQActivity{}, errors.New("input holds no activities")
	}
	if s.name == "" {
		if len(in.Activities) > 1 {
			return domain.BOQActivity{}, errors.New("input holds several activities; select one with --activity")
		}
		return in.Activities[0].toDomain(), nil
	}
	for _, a := range in.Activities {
		if a.ActivityName == s.name && a.Zone == s.zone {
			return a.toDomain(), nil
		}
	}
	return domain.BOQActivity{}, fmt.Errorf("activity %q in zone %q not found", s.name, s.zone)
}

func newReconcileCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare KPI records against BOQ activities",
	}
	cmd.AddCommand(
		newCompareCmd(opts),
		newDailyTargetCmd(opts),
		newScheduleCmd(opts),
		newValidateCmd(opts),
	)
	return cmd
}

func newCompareCmd(opts *Options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Show planned versus actual progress for every activity in the input",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in reconcileInput
			if err := readInput(file, cmd.InOrStdin(), &in); err != nil {
				return err
			}
			log := opts.logger()

			comparisons := make([]reconcile.Comparison, 0, len(in.Activities))
			matched := 0
			for _, a := range in.Activities {
				activity := a.toDomain()
				records := in.recordsFor(activity)
				matched += len(records)
				comparisons = append(comparisons, reconcile.Compare(activity, records))
			}
			if unmatched := len(in.Records) - matched; unmatched > 0 {
				log.Warn("records without a matching activity were ignored", zap.Int("count", unmatched))
			}
			summary := reconcile.Summarize(comparisons)

			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"activities": comparisons,
					"summary":    summary,
				})
			}

			rows := make([][]string, 0, len(comparisons)+1)
			for _, c := range comparisons {
				rows = append(rows, []string{
					c.ActivityName, c.Zone, c.BOQPlanned.String(), c.KPITotalPlanned.String(),
					c.KPITotalActual.String(), c.Variance.String(), c.ProgressPercentage.StringFixed(2), string(c.Status),
				})
			}
			rows = append(rows, []string{
				"TOTAL", "", summary.BOQPlanned.String(), summary.KPITotalPlanned.String(),
				summary.KPITotalActual.String(), summary.Variance.String(),
				summary.ProgressPercentage.StringFixed(2), string(summary.Status),
			})
			return writeTable(cmd.OutOrStdout(),
				[]string{"ACTIVITY", "ZONE", "BOQ", "PLANNED", "ACTUAL", "VARIANCE", "PROGRESS%", "STATUS"}, rows)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input JSON file (- for stdin)")
	return cmd
}

func newDailyTargetCmd(opts *Options) *cobra.Command {
	var file string
	var days int
	var sel activitySelector

	cmd := &cobra.Command{
		Use:   "daily-target",
		Short: "Spread an activity's planned units over its duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkDays(days); err != nil {
				return err
			}
			var in reconcileInput
			if err := readInput(file, cmd.InOrStdin(), &in); err != nil {
				return err
			}
			activity, err := sel.pick(in)
			if err != nil {
				return err
			}

			duration := reconcile.ResolveDuration(activity, days)
			target := reconcile.DailyTarget(activity, days)

			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"activityName": activity.ActivityName,
					"zone":         activity.Zone,
					"plannedUnits": activity.PlannedUnits,
					"durationDays": duration,
					"dailyTarget":  target,
				})
			}
			return writeTable(cmd.OutOrStdout(), nil, [][]string{
				{"activity", activity.ActivityName},
				{"zone", activity.Zone},
				{"planned units", activity.PlannedUnits.String()},
				{"duration days", strconv.Itoa(duration)},
				{"daily target", target.String()},
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input JSON file (- for stdin)")
	cmd.Flags().IntVar(&days, "days", defaultDurationDays, "Duration used when the activity has none")
	sel.bind(cmd)
	return cmd
}

func newScheduleCmd(opts *Options) *cobra.Command {
	var file, start string
	var days int
	var scale int32
	var sel activitySelector

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Expand an activity into one planned KPI draft per day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkDays(days); err != nil {
				return err
			}
			startDate, err := mapper.ParseDate(start)
			if err != nil {
				return err
			}
			var in reconcileInput
			if err := readInput(file, cmd.InOrStdin(), &in); err != nil {
				return err
			}
			activity, err := sel.pick(in)
			if err != nil {
				return err
			}

			var from time.Time
			if startDate != nil {
				from = *startDate
			}
			drafts := reconcile.Schedule(activity, days, from, scale)

			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"drafts": drafts,
					"total":  reconcile.SumDrafts(drafts),
				})
			}
			rows := make([][]string, 0, len(drafts)+1)
			for i, d := range drafts {
				rows = append(rows, []string{strconv.Itoa(i + 1), mapper.FormatDate(d.ActivityDate), d.Quantity.String()})
			}
			rows = append(rows, []string{"TOTAL", "", reconcile.SumDrafts(drafts).String()})
			return writeTable(cmd.OutOrStdout(), []string{"DAY", "DATE", "QUANTITY"}, rows)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input JSON file (- for stdin)")
	cmd.Flags().IntVar(&days, "days", defaultDurationDays, "Duration used when the activity has none")
	cmd.Flags().StringVar(&start, "start", "", "First day of the schedule (YYYY-MM-DD); omitted leaves drafts undated")
	cmd.Flags().Int32Var(&scale, "scale", defaultScheduleScale, "Decimal places of each daily quantity (0-6)")
	sel.bind(cmd)
	return cmd
}

func newValidateCmd(opts *Options) *cobra.Command {
	var file string
	var quantities []string
	var sel activitySelector

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check planned quantities against the BOQ ceiling in order",
		Long: "Check planned quantities against the BOQ ceiling in order. The committed total is the sum " +
			"of the Planned records in the input. Exits non-zero when any quantity is rejected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(quantities) == 0 {
				return errors.New("at least one --quantity is required")
			}
			parsed := make([]decimal.Decimal, len(quantities))
			for i, q := range quantities {
				d, err := decimal.NewFromString(q)
				if err != nil {
					return fmt.Errorf("invalid quantity %q: %w", q, err)
				}
				parsed[i] = d
			}
			var in reconcileInput
			if err := readInput(file, cmd.InOrStdin(), &in); err != nil {
				return err
			}
			activity, err := sel.pick(in)
			if err != nil {
				return err
			}

			existing := reconcile.Compare(activity, in.recordsFor(activity)).KPITotalPlanned
			result := reconcile.ValidateBatch(activity, existing, parsed)

			if opts.Output == outputJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(result.Results))
				for i, r := range result.Results {
					verdict := "ok"
					if !r.Valid {
						verdict = "rejected"
					}
					rows = append(rows, []string{strconv.Itoa(i + 1), parsed[i].String(), r.NewTotal.String(), verdict})
				}
				if err := writeTable(cmd.OutOrStdout(), []string{"#", "QUANTITY", "TOTAL", "RESULT"}, rows); err != nil {
					return err
				}
			}
			if !result.Valid {
				return fmt.Errorf("%w: %d of %d quantities rejected", ErrCeilingExceeded, len(result.Violations), len(parsed))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input JSON file (- for stdin)")
	cmd.Flags().StringSliceVarP(&quantities, "quantity", "q", nil, "Planned quantity to check; repeat or comma separate")
	sel.bind(cmd)
	return cmd
}
