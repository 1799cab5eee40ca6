package invoicing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/store/memory"
)

// seedInvoice stores an invoice with one line item and optional payments.
func seedInvoice(t *testing.T, store *memory.Store, id, familyID string, period dates.Period, due dates.Date, total float64, paid ...float64) {
	t.Helper()
	ctx := context.Background()

	p := period
	inv := &invoicing.Invoice{
		ID:          id,
		FamilyID:    familyID,
		Number:      "INV-" + id,
		Period:      &p,
		IssueDate:   period.End,
		DueDate:     due,
		Subtotal:    money.FromDollars(total),
		TotalAmount: money.FromDollars(total),
		Status:      invoicing.StatusSent,
		CreatedAt:   testNow,
	}
	require.NoError(t, store.InsertInvoice(ctx, inv))
	require.NoError(t, store.InsertInvoiceLineItems(ctx, []invoicing.InvoiceLineItem{{
		ID:          "li-" + id,
		InvoiceID:   id,
		Description: "Tuition",
		Quantity:    *decPtr("1"),
		UnitPrice:   money.FromDollars(total),
		Amount:      money.FromDollars(total),
	}}))

	var sum money.Money
	for i, amount := range paid {
		require.NoError(t, store.InsertPayment(ctx, &invoicing.Payment{
			ID:        "pay-" + id + "-" + string(rune('a'+i)),
			InvoiceID: id,
			Amount:    money.FromDollars(amount),
			PaidAt:    due,
		}))
		sum = sum.Add(money.FromDollars(amount))
	}
	if sum.IsPositive() {
		inv.AmountPaid = sum
		inv.Status = invoicing.StatusPartial
		require.NoError(t, store.UpdateInvoice(ctx, inv))
	}
}

// =============================================================================
// CONSOLIDATION TESTS
// =============================================================================

func TestConsolidate_MergesValueAndMovesPayments(t *testing.T) {
	// GIVEN: a $100 January invoice with $80 paid and a $50 February invoice
	// with $40 paid, same family
	store := memory.New()
	seedInvoice(t, store, "jan", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100, 80)
	seedInvoice(t, store, "feb", "fam-a", dates.MonthPeriod(2026, time.February), d(2026, time.March, 15), 50, 40)

	// WHEN: consolidating
	cons := invoicing.NewConsolidator(store)
	result, err := cons.Consolidate(context.Background(), []string{"feb", "jan"}, d(2026, time.March, 1), testNow)
	require.NoError(t, err)
	merged := result.Invoice

	// THEN: monetary value is preserved and payments follow the debt
	assert.Equal(t, money.FromDollars(150), merged.Subtotal)
	assert.Equal(t, money.FromDollars(150), merged.TotalAmount)
	assert.Equal(t, money.FromDollars(120), merged.AmountPaid)
	assert.Equal(t, money.FromDollars(30), merged.BalanceDue())
	assert.Equal(t, invoicing.StatusPartial, merged.Status)

	// AND: the span and due date favor the oldest debt
	require.NotNil(t, merged.Period)
	assert.True(t, merged.Period.Start.Equal(d(2026, time.January, 1)))
	assert.True(t, merged.Period.End.Equal(d(2026, time.February, 28)))
	assert.True(t, merged.DueDate.Equal(d(2026, time.February, 15)))

	// AND: line items are copied chronologically with period prefixes
	items, err := store.LineItemsForInvoice(context.Background(), merged.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Jan 2026: Tuition", items[0].Description)
	assert.Equal(t, "Feb 2026: Tuition", items[1].Description)

	// AND: payments were moved, not copied
	mergedPayments, err := store.PaymentsForInvoice(context.Background(), merged.ID)
	require.NoError(t, err)
	assert.Len(t, mergedPayments, 2)
	for _, srcID := range []string{"jan", "feb"} {
		srcPayments, err := store.PaymentsForInvoice(context.Background(), srcID)
		require.NoError(t, err)
		assert.Empty(t, srcPayments, "source %s", srcID)
	}

	// AND: sources are voided, zeroed, and point at the replacement
	for _, srcID := range []string{"jan", "feb"} {
		src, err := store.GetInvoice(context.Background(), srcID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.StatusVoid, src.Status)
		assert.True(t, src.AmountPaid.IsZero())
		require.NotNil(t, src.ConsolidatedInto)
		assert.Equal(t, merged.ID, *src.ConsolidatedInto)
	}
}

func TestConsolidate_OverpaymentCapsAtTotal(t *testing.T) {
	// GIVEN: payments exceeding the combined total
	store := memory.New()
	seedInvoice(t, store, "jan", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100, 100)
	seedInvoice(t, store, "feb", "fam-a", dates.MonthPeriod(2026, time.February), d(2026, time.March, 15), 50, 60)

	// WHEN: consolidating
	cons := invoicing.NewConsolidator(store)
	result, err := cons.Consolidate(context.Background(), []string{"jan", "feb"}, d(2026, time.March, 1), testNow)
	require.NoError(t, err)

	// THEN: amount_paid is capped at the total and the invoice is paid
	assert.Equal(t, money.FromDollars(150), result.Invoice.AmountPaid)
	assert.Equal(t, invoicing.StatusPaid, result.Invoice.Status)
	assert.True(t, result.Invoice.BalanceDue().IsZero())
}

// totalsFailStore fails the totals write on the merged invoice while
// letting the seeded sources through.
type totalsFailStore struct {
	*memory.Store
	mergedID string
}

func (s *totalsFailStore) UpdateInvoice(ctx context.Context, inv *invoicing.Invoice) error {
	if inv.ID != "jan" && inv.ID != "feb" {
		s.mergedID = inv.ID
		return errors.New("disk full")
	}
	return s.Store.UpdateInvoice(ctx, inv)
}

// reassignFailStore fails the payment move itself.
type reassignFailStore struct {
	*memory.Store
}

func (s *reassignFailStore) ReassignPayments(context.Context, []string, string) error {
	return errors.New("connection reset")
}

func TestConsolidate_TotalsWriteFailureLeavesPaymentsOnSources(t *testing.T) {
	// GIVEN: two partially paid invoices and a store that rejects the
	// merged invoice's totals write
	inner := memory.New()
	seedInvoice(t, inner, "jan", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100, 80)
	seedInvoice(t, inner, "feb", "fam-a", dates.MonthPeriod(2026, time.February), d(2026, time.March, 15), 50, 40)
	store := &totalsFailStore{Store: inner}

	// WHEN: consolidating
	cons := invoicing.NewConsolidator(store)
	_, err := cons.Consolidate(context.Background(), []string{"jan", "feb"}, d(2026, time.March, 1), testNow)
	require.Error(t, err)

	// THEN: every payment still sits on its source, nothing is orphaned
	ctx := context.Background()
	for srcID, want := range map[string]money.Money{"jan": money.FromDollars(80), "feb": money.FromDollars(40)} {
		payments, err := store.PaymentsForInvoice(ctx, srcID)
		require.NoError(t, err)
		require.Len(t, payments, 1, "source %s", srcID)
		assert.Equal(t, want, payments[0].Amount)

		src, err := store.GetInvoice(ctx, srcID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.StatusPartial, src.Status)
		assert.Equal(t, want, src.AmountPaid)
		assert.Nil(t, src.ConsolidatedInto)
	}

	// AND: the merged invoice was compensated away with its line items
	require.NotEmpty(t, store.mergedID)
	gone, err := store.GetInvoice(ctx, store.mergedID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	items, err := store.LineItemsForInvoice(ctx, store.mergedID)
	require.NoError(t, err)
	assert.Empty(t, items)
	orphans, err := store.PaymentsForInvoice(ctx, store.mergedID)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestConsolidate_PaymentMoveFailureCompensates(t *testing.T) {
	// GIVEN: a store whose payment move always fails
	inner := memory.New()
	seedInvoice(t, inner, "jan", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100, 80)
	seedInvoice(t, inner, "feb", "fam-a", dates.MonthPeriod(2026, time.February), d(2026, time.March, 15), 50, 40)
	store := &reassignFailStore{Store: inner}

	// WHEN: consolidating
	cons := invoicing.NewConsolidator(store)
	_, err := cons.Consolidate(context.Background(), []string{"jan", "feb"}, d(2026, time.March, 1), testNow)
	require.Error(t, err)

	// THEN: the sources are untouched and no merged invoice survives
	ctx := context.Background()
	invoices, err := store.ListInvoicesByFamily(ctx, "fam-a")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	for _, inv := range invoices {
		assert.Equal(t, invoicing.StatusPartial, inv.Status)
		payments, err := store.PaymentsForInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	}
}

func TestConsolidate_Validations(t *testing.T) {
	store := memory.New()
	seedInvoice(t, store, "jan", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100)
	seedInvoice(t, store, "feb", "fam-b", dates.MonthPeriod(2026, time.February), d(2026, time.March, 15), 50)
	cons := invoicing.NewConsolidator(store)
	ctx := context.Background()

	// Fewer than two invoices.
	_, err := cons.Consolidate(ctx, []string{"jan"}, d(2026, time.March, 1), testNow)
	assert.ErrorIs(t, err, invoicing.ErrTooFewInvoices)

	// Cross-family selection.
	_, err = cons.Consolidate(ctx, []string{"jan", "feb"}, d(2026, time.March, 1), testNow)
	assert.ErrorIs(t, err, invoicing.ErrCrossFamilyConsolidation)

	// Unknown invoice.
	_, err = cons.Consolidate(ctx, []string{"jan", "nope"}, d(2026, time.March, 1), testNow)
	assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)

	// Non-outstanding status.
	seedInvoice(t, store, "mar", "fam-a", dates.MonthPeriod(2026, time.March), d(2026, time.April, 15), 75)
	draft, err := store.GetInvoice(ctx, "mar")
	require.NoError(t, err)
	draft.Status = invoicing.StatusDraft
	require.NoError(t, store.UpdateInvoice(ctx, draft))

	_, err = cons.Consolidate(ctx, []string{"jan", "mar"}, d(2026, time.April, 1), testNow)
	assert.ErrorIs(t, err, invoicing.ErrNotOutstanding)
}
