/*
Package payroll computes teacher pay for fixed pay periods.

PURPOSE:
  Snapshots active teacher assignments into payroll line items for a pay
  period. Hours come from the proration engine (proration.go), pay rates
  from the fallback hierarchy (rate.go), and carry-forward adjustments are
  folded in at run creation (builder.go).

KEY CONCEPTS:
  PayrollRun:       a pay period with aggregate totals and a one-way
                    draft -> review -> approved -> paid lifecycle
  PayrollLineItem:  one computed row per (teacher, assignment); hours and
                    adjustments are hand-editable while the run is editable
  PayrollAdjustment: a credit/debit created against one run and consumed by
                    exactly one future run

LIFECYCLE:
  Line items are generated once, at run creation. Edits (hour overrides,
  adjustments, ad-hoc items) are allowed in draft and review. Approving
  records who and when; marking paid records when. There is no path back.

SEE ALSO:
  - proration.go: period-hours computation
  - rate.go: pay rate fallback hierarchy
  - builder.go: run construction algorithm
*/
package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRunNotEditable is returned when modifying line items of an
	// approved or paid run.
	ErrRunNotEditable = errors.New("payroll run is no longer editable")

	// ErrInvalidTransition is returned on any backward or skipping status move.
	ErrInvalidTransition = errors.New("invalid payroll run status transition")

	// ErrPeriodOverlap is returned when a run already covers part of the
	// requested period. This is the application-level guard against two
	// runs being created for overlapping periods.
	ErrPeriodOverlap = errors.New("a payroll run already exists for an overlapping period")

	// ErrLineItemHasAssignment is returned when deleting a line item that
	// is backed by an assignment. Only ad-hoc items may be deleted.
	ErrLineItemHasAssignment = errors.New("line items backed by an assignment cannot be deleted")

	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("payroll run not found")

	// ErrLineItemNotFound is returned for unknown line item IDs.
	ErrLineItemNotFound = errors.New("payroll line item not found")
)

// =============================================================================
// RUN STATUS - One-way lifecycle
// =============================================================================

type RunStatus string

const (
	RunDraft    RunStatus = "draft"
	RunReview   RunStatus = "review"
	RunApproved RunStatus = "approved"
	RunPaid     RunStatus = "paid"
)

var nextStatus = map[RunStatus]RunStatus{
	RunDraft:    RunReview,
	RunReview:   RunApproved,
	RunApproved: RunPaid,
}

// =============================================================================
// PAYROLL RUN
// =============================================================================

// PayrollRun is a pay period snapshot with aggregate totals.
type PayrollRun struct {
	ID     string
	Period dates.Period
	Status RunStatus

	TotalCalculated money.Money
	TotalAdjusted   money.Money
	TotalHours      decimal.Decimal
	TeacherCount    int

	ApprovedBy string
	ApprovedAt *time.Time
	PaidAt     *time.Time
	CreatedAt  time.Time
}

// Editable reports whether line items may still be changed.
func (r *PayrollRun) Editable() bool {
	return r.Status == RunDraft || r.Status == RunReview
}

// Transition advances the run one step. approved records actor and
// timestamp; paid records timestamp. Any other move is rejected.
func (r *PayrollRun) Transition(to RunStatus, actor string, at time.Time) error {
	if nextStatus[r.Status] != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	switch to {
	case RunApproved:
		r.ApprovedBy = actor
		t := at
		r.ApprovedAt = &t
	case RunPaid:
		t := at
		r.PaidAt = &t
	}
	r.Status = to
	return nil
}

// =============================================================================
// PAYROLL LINE ITEM
// =============================================================================

// PayrollLineItem is one computed pay row.
//
// FinalAmount = ActualHours x HourlyRate + AdjustmentAmount. ActualHours
// defaults to CalculatedHours and may be overridden while the run is
// editable; variable-hours assignments start at zero and must be filled in
// by hand.
type PayrollLineItem struct {
	ID           string
	RunID        string
	TeacherID    string
	AssignmentID *string // nil for ad-hoc and adjustment-host items

	Description string

	CalculatedHours decimal.Decimal
	ActualHours     decimal.Decimal
	IsVariable      bool

	HourlyRate money.Money
	RateSource RateSource

	CalculatedAmount money.Money
	AdjustmentAmount money.Money
	AdjustmentNote   string
	FinalAmount      money.Money
}

// Recalculate recomputes the derived amounts from hours, rate, and
// adjustment. Call after any hour or adjustment edit.
func (li *PayrollLineItem) Recalculate() {
	li.CalculatedAmount = li.HourlyRate.MulDecimal(li.CalculatedHours)
	li.FinalAmount = li.HourlyRate.MulDecimal(li.ActualHours).Add(li.AdjustmentAmount)
}

// =============================================================================
// PAYROLL ADJUSTMENT - Carry-forward credit/debit
// =============================================================================

// PayrollAdjustment carries a pay correction forward to a future run.
// TargetRunID stays nil until the adjustment is consumed; each adjustment
// is applied to exactly one run.
type PayrollAdjustment struct {
	ID          string
	TeacherID   string
	Amount      money.Money
	Note        string
	SourceRunID *string
	TargetRunID *string
	CreatedAt   time.Time
}

// Pending reports whether the adjustment has not yet been applied to a run.
func (a PayrollAdjustment) Pending() bool { return a.TargetRunID == nil }
