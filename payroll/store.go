package payroll

import (
	"context"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
)

// =============================================================================
// STORE INTERFACES - Persistence collaborator for the payroll engine
// =============================================================================

// AssignmentContext bundles an active assignment with the joined rows the
// run builder needs: the teacher (always), the service resolved directly or
// through the enrollment, and the student for enrollment-scoped assignments.
type AssignmentContext struct {
	Assignment domain.TeacherAssignment
	Teacher    domain.Teacher
	Service    *domain.Service
	Student    *domain.Student
}

// Store is the persistence collaborator for payroll runs. Implementations
// must provide read-your-writes consistency within a request; nothing more
// is assumed.
type Store interface {
	// ActiveAssignments returns all active teacher assignments, both
	// enrollment-scoped and service-scoped, with joined context.
	ActiveAssignments(ctx context.Context) ([]AssignmentContext, error)

	// Runs
	InsertRun(ctx context.Context, run *PayrollRun) error
	UpdateRun(ctx context.Context, run *PayrollRun) error
	DeleteRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*PayrollRun, error)
	ListRuns(ctx context.Context) ([]PayrollRun, error)
	// OverlappingRunExists reports whether any run's period intersects the
	// given one.
	OverlappingRunExists(ctx context.Context, period dates.Period) (bool, error)

	// Line items
	InsertLineItems(ctx context.Context, items []PayrollLineItem) error
	InsertLineItem(ctx context.Context, item *PayrollLineItem) error
	UpdateLineItem(ctx context.Context, item *PayrollLineItem) error
	DeleteLineItem(ctx context.Context, itemID string) error
	DeleteLineItemsForRun(ctx context.Context, runID string) error
	GetLineItem(ctx context.Context, itemID string) (*PayrollLineItem, error)
	// LineItemsForRun returns items in insertion order.
	LineItemsForRun(ctx context.Context, runID string) ([]PayrollLineItem, error)

	// Adjustments
	InsertAdjustment(ctx context.Context, adj *PayrollAdjustment) error
	UpdateAdjustment(ctx context.Context, adj *PayrollAdjustment) error
	// PendingAdjustments returns adjustments with no target run yet.
	PendingAdjustments(ctx context.Context) ([]PayrollAdjustment, error)
}
