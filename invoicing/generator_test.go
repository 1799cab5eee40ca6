package invoicing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)

func januaryOpts() invoicing.GenerateOptions {
	return invoicing.GenerateOptions{
		Period:    dates.MonthPeriod(2026, time.January),
		IssueDate: d(2026, time.February, 1),
		DueDate:   d(2026, time.February, 15),
		Monthly:   true,
	}
}

// seedFamily creates a family with one monthly enrollment at the given rate.
func seedFamily(s *memory.Store, n string, monthlyRate float64) {
	s.PutFamily(domain.Family{ID: "fam-" + n, Name: "Family " + n})
	s.PutStudent(domain.Student{ID: "stu-" + n, FamilyID: "fam-" + n, Name: "Student " + n})
	s.PutService(domain.Service{ID: "svc-tuition", Name: "Tuition", BillingFrequency: domain.BillMonthly})
	s.PutEnrollment(domain.Enrollment{
		ID:          "enr-" + n,
		StudentID:   "stu-" + n,
		FamilyID:    "fam-" + n,
		ServiceID:   "svc-tuition",
		MonthlyRate: mPtr(money.FromDollars(monthlyRate)),
		IsActive:    true,
	})
}

// lineItemFailStore fails line item inserts for one target family's
// invoices, exercising the per-family compensation path.
type lineItemFailStore struct {
	*memory.Store
	failFamilyID string
}

func (s *lineItemFailStore) InsertInvoiceLineItems(ctx context.Context, items []invoicing.InvoiceLineItem) error {
	if len(items) > 0 {
		inv, err := s.GetInvoice(ctx, items[0].InvoiceID)
		if err == nil && inv != nil && inv.FamilyID == s.failFamilyID {
			return errors.New("simulated storage failure")
		}
	}
	return s.Store.InsertInvoiceLineItems(ctx, items)
}

// =============================================================================
// DRAFT GENERATION TESTS
// =============================================================================

func TestGenerateDrafts_OneInvoicePerFamily(t *testing.T) {
	// GIVEN: two families with active monthly enrollments
	store := memory.New()
	seedFamily(store, "a", 400)
	seedFamily(store, "b", 250)

	// WHEN: generating January drafts
	gen := invoicing.NewGenerator(store)
	result, err := gen.GenerateDrafts(context.Background(), januaryOpts(), testNow)
	require.NoError(t, err)

	// THEN: one draft per family with correct totals
	require.Len(t, result.Created, 2)
	assert.Empty(t, result.Failures)

	byFamily := map[string]invoicing.Invoice{}
	for _, inv := range result.Created {
		byFamily[inv.FamilyID] = inv
	}
	assert.Equal(t, money.FromDollars(400), byFamily["fam-a"].TotalAmount)
	assert.Equal(t, money.FromDollars(250), byFamily["fam-b"].TotalAmount)
	assert.Equal(t, invoicing.StatusDraft, byFamily["fam-a"].Status)

	items, err := store.LineItemsForInvoice(context.Background(), byFamily["fam-a"].ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, money.FromDollars(400), items[0].Amount)
	require.NotNil(t, items[0].EnrollmentID)
	assert.Equal(t, "enr-a", *items[0].EnrollmentID)
}

func TestGenerateDrafts_PartialFailureIsolatesFamilies(t *testing.T) {
	// GIVEN: three families, storage fails for family b's line items
	base := memory.New()
	seedFamily(base, "a", 400)
	seedFamily(base, "b", 250)
	seedFamily(base, "c", 300)
	store := &lineItemFailStore{Store: base, failFamilyID: "fam-b"}

	// WHEN: generating drafts
	gen := invoicing.NewGenerator(store)
	result, err := gen.GenerateDrafts(context.Background(), januaryOpts(), testNow)

	// THEN: the call succeeds with two invoices and one recorded failure
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "fam-b", result.Failures[0].FamilyID)

	// AND: no partial rows survive for the failed family
	invoices, err := base.ListInvoicesByFamily(context.Background(), "fam-b")
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestGenerateDrafts_AllFamiliesFailingIsAnError(t *testing.T) {
	// GIVEN: one family whose invoice cannot be stored
	base := memory.New()
	seedFamily(base, "a", 400)
	store := &lineItemFailStore{Store: base, failFamilyID: "fam-a"}

	// WHEN / THEN: a 100% failure surfaces as an error, with the failure list
	gen := invoicing.NewGenerator(store)
	result, err := gen.GenerateDrafts(context.Background(), januaryOpts(), testNow)
	require.ErrorIs(t, err, invoicing.ErrNoFamiliesBilled)
	require.NotNil(t, result)
	assert.Len(t, result.Failures, 1)
}

func TestGenerateDrafts_MonthlyRunAbsorbsMatchingRegistrationFee(t *testing.T) {
	// GIVEN: a family with an elective enrollment titled "Robotics Club" and
	// a pending registration fee order titled "robotics"
	store := memory.New()
	seedFamily(store, "a", 400)
	store.PutService(domain.Service{ID: "svc-elective", Name: "Electives", BillingFrequency: domain.BillMonthly})
	store.PutEnrollment(domain.Enrollment{
		ID:          "enr-elective",
		StudentID:   "stu-a",
		FamilyID:    "fam-a",
		ServiceID:   "svc-elective",
		MonthlyRate: mPtr(money.FromDollars(50)),
		ClassTitle:  "Robotics Club",
		IsActive:    true,
	})
	store.PutOrder(invoicing.AdHocOrder{
		ID:         "ord-1",
		FamilyID:   "fam-a",
		ClassTitle: "robotics",
		Amount:     money.FromDollars(35),
	})
	// A pending order with no matching class stays pending.
	store.PutOrder(invoicing.AdHocOrder{
		ID:         "ord-2",
		FamilyID:   "fam-a",
		ClassTitle: "Chess Camp",
		Amount:     money.FromDollars(20),
	})

	// WHEN: generating a monthly run
	gen := invoicing.NewGenerator(store)
	result, err := gen.GenerateDrafts(context.Background(), januaryOpts(), testNow)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	inv := result.Created[0]

	// THEN: the fee is a line item and the total includes it
	assert.Equal(t, money.FromDollars(485), inv.TotalAmount) // 400 + 50 + 35

	items, err := store.LineItemsForInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Registration fee - robotics", items[2].Description)
	assert.Nil(t, items[2].EnrollmentID)

	// AND: the matched order is linked, the unmatched one stays pending
	matched, err := store.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	require.NotNil(t, matched.InvoiceID)
	assert.Equal(t, inv.ID, *matched.InvoiceID)

	unmatched, err := store.GetOrder(context.Background(), "ord-2")
	require.NoError(t, err)
	assert.True(t, unmatched.Pending())
}

func TestGenerateDrafts_NonMonthlyRunSkipsRegistrationFees(t *testing.T) {
	// GIVEN: a pending fee that would match
	store := memory.New()
	seedFamily(store, "a", 400)
	store.PutEnrollment(domain.Enrollment{
		ID: "enr-elective", StudentID: "stu-a", FamilyID: "fam-a", ServiceID: "svc-tuition",
		MonthlyRate: mPtr(money.FromDollars(50)), ClassTitle: "Robotics Club", IsActive: true,
	})
	store.PutOrder(invoicing.AdHocOrder{ID: "ord-1", FamilyID: "fam-a", ClassTitle: "robotics", Amount: money.FromDollars(35)})

	// WHEN: a non-monthly run
	opts := januaryOpts()
	opts.Monthly = false
	gen := invoicing.NewGenerator(store)
	result, err := gen.GenerateDrafts(context.Background(), opts, testNow)
	require.NoError(t, err)

	// THEN: the order is not absorbed
	require.Len(t, result.Created, 1)
	assert.Equal(t, money.FromDollars(450), result.Created[0].TotalAmount)
	order, err := store.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.True(t, order.Pending())
}
