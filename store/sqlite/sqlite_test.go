package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/payroll"
	"github.com/brightpath/tutorbill/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mPtr(m money.Money) *money.Money { return &m }

func decPtr(s string) *decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &v
}

func strPtr(s string) *string { return &s }

var now = time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

// seed populates one family, teacher, service, enrollment, and assignment.
func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertFamily(ctx, &domain.Family{ID: "fam-1", Name: "Nguyen", Email: "fam@example.com"}))
	require.NoError(t, store.UpsertStudent(ctx, &domain.Student{ID: "stu-1", FamilyID: "fam-1", Name: "Minh"}))
	require.NoError(t, store.UpsertTeacher(ctx, &domain.Teacher{ID: "t-1", Name: "Alice", DefaultHourlyRate: mPtr(money.FromDollars(25))}))
	require.NoError(t, store.UpsertService(ctx, &domain.Service{
		ID: "svc-1", Name: "Math Tutoring", BillingFrequency: domain.BillMonthly,
	}))
	require.NoError(t, store.UpsertEnrollment(ctx, &domain.Enrollment{
		ID: "enr-1", StudentID: "stu-1", FamilyID: "fam-1", ServiceID: "svc-1",
		MonthlyRate: mPtr(money.FromDollars(400)), IsActive: true,
	}))
	require.NoError(t, store.UpsertAssignment(ctx, &domain.TeacherAssignment{
		ID: "asg-1", TeacherID: "t-1", EnrollmentID: strPtr("enr-1"),
		HourlyRateTeacher: mPtr(money.FromDollars(30)),
		HoursPerWeek:      decPtr("10"),
		IsActive:          true,
	}))
}

// =============================================================================
// JOIN QUERY TESTS
// =============================================================================

func TestActiveAssignments_JoinsContext(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	assignments, err := store.ActiveAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, assignments, 1)

	actx := assignments[0]
	assert.Equal(t, "asg-1", actx.Assignment.ID)
	assert.Equal(t, "Alice", actx.Teacher.Name)
	require.NotNil(t, actx.Service)
	assert.Equal(t, "Math Tutoring", actx.Service.Name)
	require.NotNil(t, actx.Student)
	assert.Equal(t, "Minh", actx.Student.Name)
	require.NotNil(t, actx.Assignment.HoursPerWeek)
	assert.Equal(t, "10", actx.Assignment.HoursPerWeek.String())
}

func TestBillableEnrollments_JoinsServiceAndFamily(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	billables, err := store.BillableEnrollments(context.Background())
	require.NoError(t, err)
	require.Len(t, billables, 1)

	b := billables[0]
	assert.Equal(t, "enr-1", b.Enrollment.ID)
	assert.Equal(t, domain.BillMonthly, b.Service.BillingFrequency)
	assert.Equal(t, "Nguyen", b.Family.Name)
	require.NotNil(t, b.Enrollment.MonthlyRate)
	assert.Equal(t, money.FromDollars(400), *b.Enrollment.MonthlyRate)
}

// =============================================================================
// ENGINE INTEGRATION - the builders run unmodified against SQLite
// =============================================================================

func TestPayrollRunAgainstSQLite(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	builder := payroll.NewBuilder(store)
	result, err := builder.CreateRun(ctx, dates.MonthPeriod(2026, time.January), now)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, money.FromDollars(1320), result.Run.TotalAdjusted) // 44h x $30

	// Round trip: the persisted run and items match what was returned.
	loaded, err := store.GetRun(ctx, result.Run.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, result.Run.TotalAdjusted, loaded.TotalAdjusted)
	assert.Equal(t, result.Run.Period, loaded.Period)
	assert.True(t, result.Run.TotalHours.Equal(loaded.TotalHours))

	items, err := store.LineItemsForRun(ctx, result.Run.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, result.Items[0].FinalAmount, items[0].FinalAmount)
	require.NotNil(t, items[0].AssignmentID)
	assert.Equal(t, "asg-1", *items[0].AssignmentID)

	// Overlap guard works through SQL.
	exists, err := store.OverlappingRunExists(ctx, dates.Period{
		Start: dates.New(2026, time.January, 15), End: dates.New(2026, time.February, 15),
	})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.OverlappingRunExists(ctx, dates.MonthPeriod(2026, time.February))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInvoiceLifecycleAgainstSQLite(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	gen := invoicing.NewGenerator(store)
	result, err := gen.GenerateDrafts(ctx, invoicing.GenerateOptions{
		Period:    dates.MonthPeriod(2026, time.January),
		IssueDate: dates.New(2026, time.February, 1),
		DueDate:   dates.New(2026, time.February, 15),
		Monthly:   true,
	}, now)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	inv := result.Created[0]
	assert.Equal(t, money.FromDollars(400), inv.TotalAmount)

	// Payments persist and drive the cached aggregates.
	ledger := invoicing.NewLedger(store)
	sent, err := ledger.MarkSent(ctx, inv.ID, dates.New(2026, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusSent, sent.Status)

	_, err = ledger.RecordPayment(ctx, inv.ID, money.FromDollars(150), dates.New(2026, time.February, 5), "check", "")
	require.NoError(t, err)

	loaded, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusPartial, loaded.Status)
	assert.Equal(t, money.FromDollars(250), loaded.BalanceDue())
	require.NotNil(t, loaded.Period)
	assert.True(t, loaded.Period.Start.Equal(dates.New(2026, time.January, 1)))
}

func TestAssignmentScopeEnforcedBySchema(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	// Both scopes set: rejected before SQL by Validate.
	err := store.UpsertAssignment(context.Background(), &domain.TeacherAssignment{
		ID: "asg-bad", TeacherID: "t-1",
		EnrollmentID: strPtr("enr-1"), ServiceID: strPtr("svc-1"),
		IsActive: true,
	})
	assert.ErrorIs(t, err, domain.ErrAssignmentScope)
}
