/*
builder.go - Payroll run construction

PURPOSE:
  Snapshots all active teacher assignments into line items for a pay period.
  Construction happens once, at run creation; afterwards the run is edited
  by hand (edits.go) until approval.

ALGORITHM:
  1. Reject periods that overlap an existing run (application-level guard;
     the store writes are not transactional across steps).
  2. For each active assignment: prorate hours and resolve the pay rate.
     Zero-hours, non-variable assignments are skipped - nothing to pay,
     nothing to review. Variable-hours assignments are kept at zero hours
     so a reviewer fills them in.
  3. Persist the run, then all line items in one batch. A failure after the
     run row exists compensates by deleting the partial run.
  4. Apply pending carry-forward adjustments: link each to this run and add
     its amount to the teacher's first line item. A teacher with a pending
     adjustment but no line item gets a zero-hours host item, so the
     adjustment is always reflected in run totals.
  5. Recompute the run's aggregate totals from the final line items.

SEE ALSO:
  - proration.go, rate.go: per-assignment math
  - edits.go: manual corrections after creation
*/
package payroll

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/saga"
)

// Builder creates payroll runs from assignment state.
type Builder struct {
	Store Store
}

// NewBuilder returns a Builder backed by the given store.
func NewBuilder(store Store) *Builder { return &Builder{Store: store} }

// RunResult is the outcome of run creation.
type RunResult struct {
	Run      *PayrollRun
	Items    []PayrollLineItem
	Warnings []string
}

// CreateRun builds a payroll run for the period. now is injected for
// testability; it stamps CreatedAt only.
func (b *Builder) CreateRun(ctx context.Context, period dates.Period, now time.Time) (*RunResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	exists, err := b.Store.OverlappingRunExists(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("checking for overlapping runs: %w", err)
	}
	if exists {
		return nil, ErrPeriodOverlap
	}

	assignments, err := b.Store.ActiveAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active assignments: %w", err)
	}

	run := &PayrollRun{
		ID:        uuid.NewString(),
		Period:    period,
		Status:    RunDraft,
		CreatedAt: now,
	}

	var (
		items    []PayrollLineItem
		warnings []string
	)
	for _, actx := range assignments {
		if err := actx.Assignment.Validate(); err != nil {
			warnings = append(warnings, fmt.Sprintf("assignment %s skipped: %v", actx.Assignment.ID, err))
			continue
		}

		pr := ProrateHours(actx.Assignment.HoursPerWeek, period, actx.Assignment.StartDate, actx.Assignment.EndDate)
		if pr.Hours.IsZero() && !pr.IsVariable {
			continue
		}

		rate, source := ResolveRate(actx.Assignment, actx.Service, actx.Teacher)
		if rate.IsZero() {
			warnings = append(warnings, fmt.Sprintf("no pay rate resolved for teacher %s on assignment %s; line item created at $0.00", actx.Teacher.Name, actx.Assignment.ID))
		}

		assignmentID := actx.Assignment.ID
		item := PayrollLineItem{
			ID:              uuid.NewString(),
			RunID:           run.ID,
			TeacherID:       actx.Teacher.ID,
			AssignmentID:    &assignmentID,
			Description:     describe(actx),
			CalculatedHours: pr.Hours,
			ActualHours:     pr.Hours,
			IsVariable:      pr.IsVariable,
			HourlyRate:      rate,
			RateSource:      source,
		}
		item.Recalculate()
		items = append(items, item)
	}

	comp := saga.New()
	if err := b.Store.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("inserting payroll run: %w", err)
	}
	comp.Add("delete run "+run.ID, func(ctx context.Context) error {
		return b.Store.DeleteRun(ctx, run.ID)
	})

	if len(items) > 0 {
		if err := b.Store.InsertLineItems(ctx, items); err != nil {
			for _, w := range comp.Compensate(ctx) {
				warnings = append(warnings, w.Error())
			}
			return nil, fmt.Errorf("inserting line items: %w", err)
		}
	}
	comp.Discard()

	items, adjWarnings, err := b.applyPendingAdjustments(ctx, run, items)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, adjWarnings...)

	RecomputeTotals(run, items)
	if err := b.Store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("updating run totals: %w", err)
	}

	return &RunResult{Run: run, Items: items, Warnings: warnings}, nil
}

// describe builds the human-readable line item label.
func describe(actx AssignmentContext) string {
	switch {
	case actx.Student != nil && actx.Service != nil:
		return actx.Student.Name + " - " + actx.Service.Name
	case actx.Service != nil:
		return actx.Service.Name
	default:
		return actx.Teacher.Name
	}
}

// applyPendingAdjustments links every unconsumed carry-forward adjustment
// to this run and folds its amount into the teacher's first line item. A
// teacher with no line item in the run gets a zero-hours host item rather
// than the adjustment silently vanishing from the totals.
func (b *Builder) applyPendingAdjustments(ctx context.Context, run *PayrollRun, items []PayrollLineItem) ([]PayrollLineItem, []string, error) {
	pending, err := b.Store.PendingAdjustments(ctx)
	if err != nil {
		return items, nil, fmt.Errorf("loading pending adjustments: %w", err)
	}

	var warnings []string
	for i := range pending {
		adj := pending[i]
		adj.TargetRunID = &run.ID

		target := -1
		for j := range items {
			if items[j].TeacherID == adj.TeacherID {
				target = j
				break
			}
		}

		if target == -1 {
			host := PayrollLineItem{
				ID:          uuid.NewString(),
				RunID:       run.ID,
				TeacherID:   adj.TeacherID,
				Description: "Carry-forward adjustment",
			}
			if err := b.Store.InsertLineItem(ctx, &host); err != nil {
				return items, warnings, fmt.Errorf("inserting adjustment host item: %w", err)
			}
			items = append(items, host)
			target = len(items) - 1
			warnings = append(warnings, fmt.Sprintf("teacher %s had a pending adjustment but no hours this period; zero-hours line item created", adj.TeacherID))
		}

		items[target].AdjustmentAmount = items[target].AdjustmentAmount.Add(adj.Amount)
		items[target].AdjustmentNote = joinNote(items[target].AdjustmentNote, adj.Note)
		items[target].Recalculate()
		if err := b.Store.UpdateLineItem(ctx, &items[target]); err != nil {
			return items, warnings, fmt.Errorf("applying adjustment %s: %w", adj.ID, err)
		}
		if err := b.Store.UpdateAdjustment(ctx, &adj); err != nil {
			return items, warnings, fmt.Errorf("linking adjustment %s: %w", adj.ID, err)
		}
	}
	return items, warnings, nil
}

func joinNote(existing, note string) string {
	if existing == "" {
		return note
	}
	if note == "" {
		return existing
	}
	return existing + "; " + note
}

// RecomputeTotals rebuilds the run's aggregate fields from its line items.
func RecomputeTotals(run *PayrollRun, items []PayrollLineItem) {
	var (
		calculated money.Money
		adjusted   money.Money
		hours      = decimal.Zero
		teachers   = map[string]struct{}{}
	)
	for _, li := range items {
		calculated = calculated.Add(li.CalculatedAmount)
		adjusted = adjusted.Add(li.FinalAmount)
		hours = hours.Add(li.ActualHours)
		teachers[li.TeacherID] = struct{}{}
	}
	run.TotalCalculated = calculated
	run.TotalAdjusted = adjusted
	run.TotalHours = hours
	run.TeacherCount = len(teachers)
}

// SortItemsByTeacher orders line items for display: teacher, then
// description.
func SortItemsByTeacher(items []PayrollLineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].TeacherID != items[j].TeacherID {
			return items[i].TeacherID < items[j].TeacherID
		}
		return items[i].Description < items[j].Description
	})
}
