/*
edits.go - Manual corrections to a draft/review payroll run

PURPOSE:
  After creation, reviewers correct a run by hand: overriding actual hours
  (required for variable-hours assignments), entering adjustments, bulk
  hour entry across teachers, and ad-hoc line items for miscellaneous paid
  tasks. Every edit recomputes the affected item's final amount and the
  run's aggregate totals.

RULES:
  - Edits are allowed only while the run is in draft or review.
  - Only line items with no backing assignment may be deleted.
  - Status moves are strictly forward: draft -> review -> approved -> paid.
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/money"
)

// Editor applies manual corrections to payroll runs.
type Editor struct {
	Store Store
}

// NewEditor returns an Editor backed by the given store.
func NewEditor(store Store) *Editor { return &Editor{Store: store} }

// editableRun loads a run and rejects edits on approved/paid runs.
func (e *Editor) editableRun(ctx context.Context, runID string) (*PayrollRun, error) {
	run, err := e.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if !run.Editable() {
		return nil, fmt.Errorf("%w: status %s", ErrRunNotEditable, run.Status)
	}
	return run, nil
}

// refreshTotals recomputes and persists the run's aggregates.
func (e *Editor) refreshTotals(ctx context.Context, run *PayrollRun) error {
	items, err := e.Store.LineItemsForRun(ctx, run.ID)
	if err != nil {
		return err
	}
	RecomputeTotals(run, items)
	return e.Store.UpdateRun(ctx, run)
}

// OverrideHours sets a line item's actual hours and recomputes amounts and
// run totals.
func (e *Editor) OverrideHours(ctx context.Context, itemID string, hours decimal.Decimal) (*PayrollLineItem, error) {
	item, err := e.Store.GetLineItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrLineItemNotFound
	}
	run, err := e.editableRun(ctx, item.RunID)
	if err != nil {
		return nil, err
	}

	item.ActualHours = hours.Round(2)
	item.Recalculate()
	if err := e.Store.UpdateLineItem(ctx, item); err != nil {
		return nil, err
	}
	return item, e.refreshTotals(ctx, run)
}

// SetAdjustment sets a line item's adjustment amount and note.
func (e *Editor) SetAdjustment(ctx context.Context, itemID string, amount money.Money, note string) (*PayrollLineItem, error) {
	item, err := e.Store.GetLineItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrLineItemNotFound
	}
	run, err := e.editableRun(ctx, item.RunID)
	if err != nil {
		return nil, err
	}

	item.AdjustmentAmount = amount
	item.AdjustmentNote = note
	item.Recalculate()
	if err := e.Store.UpdateLineItem(ctx, item); err != nil {
		return nil, err
	}
	return item, e.refreshTotals(ctx, run)
}

// BulkSetHours sets actual hours on every line item of the selected
// teachers in one pass. Used to key in timesheets for variable-hours staff.
func (e *Editor) BulkSetHours(ctx context.Context, runID string, teacherIDs []string, hours decimal.Decimal) (int, error) {
	run, err := e.editableRun(ctx, runID)
	if err != nil {
		return 0, err
	}
	items, err := e.Store.LineItemsForRun(ctx, runID)
	if err != nil {
		return 0, err
	}

	selected := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		selected[id] = true
	}

	updated := 0
	for i := range items {
		if !selected[items[i].TeacherID] {
			continue
		}
		items[i].ActualHours = hours.Round(2)
		items[i].Recalculate()
		if err := e.Store.UpdateLineItem(ctx, &items[i]); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, e.refreshTotals(ctx, run)
}

// AddManualItem inserts an ad-hoc line item with no backing assignment
// (training sessions, event staffing, one-off tasks).
func (e *Editor) AddManualItem(ctx context.Context, runID, teacherID, description string, hours decimal.Decimal, rate money.Money) (*PayrollLineItem, error) {
	run, err := e.editableRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	item := &PayrollLineItem{
		ID:              uuid.NewString(),
		RunID:           runID,
		TeacherID:       teacherID,
		Description:     description,
		CalculatedHours: hours.Round(2),
		ActualHours:     hours.Round(2),
		HourlyRate:      rate,
		RateSource:      RateFromAssignment,
	}
	item.Recalculate()
	if err := e.Store.InsertLineItem(ctx, item); err != nil {
		return nil, err
	}
	return item, e.refreshTotals(ctx, run)
}

// DeleteManualItem removes an ad-hoc line item. Items backed by an
// assignment cannot be deleted; zero their hours instead.
func (e *Editor) DeleteManualItem(ctx context.Context, itemID string) error {
	item, err := e.Store.GetLineItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrLineItemNotFound
	}
	if item.AssignmentID != nil {
		return ErrLineItemHasAssignment
	}
	run, err := e.editableRun(ctx, item.RunID)
	if err != nil {
		return err
	}
	if err := e.Store.DeleteLineItem(ctx, itemID); err != nil {
		return err
	}
	return e.refreshTotals(ctx, run)
}

// CreateAdjustment records a carry-forward credit/debit to be consumed by
// the next run created for the teacher.
func (e *Editor) CreateAdjustment(ctx context.Context, teacherID string, amount money.Money, note string, sourceRunID *string, now time.Time) (*PayrollAdjustment, error) {
	adj := &PayrollAdjustment{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		Amount:      amount,
		Note:        note,
		SourceRunID: sourceRunID,
		CreatedAt:   now,
	}
	if err := e.Store.InsertAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// AdvanceStatus moves a run one step forward, recording actor/timestamps.
func (e *Editor) AdvanceStatus(ctx context.Context, runID string, to RunStatus, actor string, at time.Time) (*PayrollRun, error) {
	run, err := e.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	if err := run.Transition(to, actor, at); err != nil {
		return nil, err
	}
	return run, e.Store.UpdateRun(ctx, run)
}
