/*
Package saga provides an explicit compensation list for multi-step writes.

PURPOSE:
  The payroll and invoicing engines perform several sequential writes against
  the store without database transactions spanning them. When a later step
  fails, the earlier writes must be undone. Instead of ad hoc cleanup in
  every mutation, each step registers its undo action here; on failure the
  caller runs Compensate, which executes the undos in reverse order and
  collects any that themselves fail as warnings.

USAGE:
  s := saga.New()
  if err := store.InsertInvoice(ctx, inv); err != nil { return err }
  s.Add("delete invoice "+inv.ID, func(ctx context.Context) error {
      return store.DeleteInvoice(ctx, inv.ID)
  })
  ...
  if err != nil {
      warnings := s.Compensate(ctx)
      ...
  }
*/
package saga

import (
	"context"
	"fmt"
)

// UndoFunc reverses a single completed step.
type UndoFunc func(ctx context.Context) error

type step struct {
	label string
	undo  UndoFunc
}

// Saga is an ordered list of undo actions for completed steps.
// Not safe for concurrent use; each operation builds its own.
type Saga struct {
	steps []step
}

// New returns an empty compensation list.
func New() *Saga { return &Saga{} }

// Add registers the undo action for a step that just succeeded.
func (s *Saga) Add(label string, undo UndoFunc) {
	s.steps = append(s.steps, step{label: label, undo: undo})
}

// Len returns the number of registered steps.
func (s *Saga) Len() int { return len(s.steps) }

// Compensate runs all undo actions in reverse order. Undo failures do not
// stop the remaining undos; they are returned as warnings for the caller
// to report. The list is cleared afterwards.
func (s *Saga) Compensate(ctx context.Context) []error {
	var warnings []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		st := s.steps[i]
		if err := st.undo(ctx); err != nil {
			warnings = append(warnings, fmt.Errorf("compensation %q failed: %w", st.label, err))
		}
	}
	s.steps = nil
	return warnings
}

// Discard drops the registered undos without running them. Called when the
// whole operation succeeded.
func (s *Saga) Discard() { s.steps = nil }
